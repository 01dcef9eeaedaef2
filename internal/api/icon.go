package api

import (
	"bytes"
	"encoding/base64"
	"image"
	"image/png"
	"net/http"
	"strings"

	"golang.org/x/image/draw"
)

const iconSize = 64

// handleIcon serves the server's favicon from the status ping, decoded
// and rescaled to a fixed 64x64 PNG
func (r *Router) handleIcon(w http.ResponseWriter, req *http.Request) {
	status := r.prober.Query()
	if status.Favicon == "" {
		writeError(w, http.StatusNotFound, "server has no icon")
		return
	}

	img, err := decodeFavicon(status.Favicon)
	if err != nil {
		writeError(w, http.StatusBadGateway, "undecodable server icon")
		return
	}

	scaled := image.NewRGBA(image.Rect(0, 0, iconSize, iconSize))
	draw.CatmullRom.Scale(scaled, scaled.Bounds(), img, img.Bounds(), draw.Over, nil)

	var buf bytes.Buffer
	if err := png.Encode(&buf, scaled); err != nil {
		writeError(w, http.StatusInternalServerError, "encoding icon")
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "max-age=300")
	w.Write(buf.Bytes())
}

// decodeFavicon parses the "data:image/png;base64,..." favicon field.
func decodeFavicon(favicon string) (image.Image, error) {
	b64 := favicon
	if idx := strings.Index(b64, ","); idx >= 0 {
		b64 = b64[idx+1:]
	}
	raw, err := base64.StdEncoding.DecodeString(b64)
	if err != nil {
		return nil, err
	}
	img, _, err := image.Decode(bytes.NewReader(raw))
	return img, err
}
