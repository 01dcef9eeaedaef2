package mc

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"regexp"
	"strconv"
	"time"
)

// Status is the result of a Server List Ping. Any failure comes back as
// Online=false with Err recorded; Query never panics or returns an error
// to the caller, so downstream code treats status as a plain value.
type Status struct {
	Online        bool
	PlayersOnline int
	PlayersMax    int
	Sample        []string
	LatencyMs     int
	MOTD          string
	Favicon       string // data URI, may be empty
	Err           error
}

// Prober issues Server List Ping queries against a Minecraft server.
type Prober struct {
	Host    string
	Port    int
	Timeout time.Duration
}

// NewProber creates a status prober for host:port.
func NewProber(host string, port int, timeout time.Duration) *Prober {
	if timeout == 0 {
		timeout = 5 * time.Second
	}
	return &Prober{Host: host, Port: port, Timeout: timeout}
}

// Query performs the handshake, status request and ping round-trip.
func (p *Prober) Query() Status {
	addr := net.JoinHostPort(p.Host, strconv.Itoa(p.Port))
	conn, err := net.DialTimeout("tcp", addr, p.Timeout)
	if err != nil {
		return Status{Err: fmt.Errorf("connecting to %s: %w", addr, err)}
	}
	defer conn.Close()
	conn.SetDeadline(time.Now().Add(p.Timeout))

	// Handshake: packet 0x00, protocol version -1 (status only), host,
	// port, next state 1. Then the empty status request packet.
	var hs bytes.Buffer
	writeVarInt(&hs, 0x00)
	writeVarInt(&hs, -1)
	writeVarInt(&hs, len(p.Host))
	hs.WriteString(p.Host)
	binary.Write(&hs, binary.BigEndian, uint16(p.Port))
	writeVarInt(&hs, 1)
	if err := writeFrame(conn, hs.Bytes()); err != nil {
		return Status{Err: fmt.Errorf("sending handshake: %w", err)}
	}
	if err := writeFrame(conn, []byte{0x00}); err != nil {
		return Status{Err: fmt.Errorf("sending status request: %w", err)}
	}

	payload, err := readFrame(conn)
	if err != nil {
		return Status{Err: fmt.Errorf("reading status response: %w", err)}
	}
	r := bytes.NewReader(payload)
	if id, err := readVarInt(r); err != nil || id != 0x00 {
		return Status{Err: fmt.Errorf("unexpected status packet id")}
	}
	strLen, err := readVarInt(r)
	if err != nil || strLen < 0 || strLen > r.Len() {
		return Status{Err: fmt.Errorf("invalid status payload length")}
	}
	raw := make([]byte, strLen)
	io.ReadFull(r, raw)

	status, err := parseStatusJSON(raw)
	if err != nil {
		return Status{Err: err}
	}

	// Ping packet 0x01 with an arbitrary payload; latency is the time to pong.
	start := time.Now()
	var ping bytes.Buffer
	writeVarInt(&ping, 0x01)
	binary.Write(&ping, binary.BigEndian, start.UnixNano())
	if err := writeFrame(conn, ping.Bytes()); err == nil {
		if _, err := readFrame(conn); err == nil {
			status.LatencyMs = int(time.Since(start).Milliseconds())
		}
	}

	status.Online = true
	return status
}

// statusPayload mirrors the Server List Ping JSON document. Description
// is raw because servers send either a plain string or a chat object.
type statusPayload struct {
	Players struct {
		Online int `json:"online"`
		Max    int `json:"max"`
		Sample []struct {
			Name string `json:"name"`
		} `json:"sample"`
	} `json:"players"`
	Description json.RawMessage `json:"description"`
	Favicon     string          `json:"favicon"`
}

func parseStatusJSON(raw []byte) (Status, error) {
	var payload statusPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return Status{}, fmt.Errorf("decoding status payload: %w", err)
	}
	st := Status{
		PlayersOnline: payload.Players.Online,
		PlayersMax:    payload.Players.Max,
		MOTD:          StripFormatting(flattenDescription(payload.Description)),
		Favicon:       payload.Favicon,
	}
	for _, s := range payload.Players.Sample {
		st.Sample = append(st.Sample, s.Name)
	}
	return st, nil
}

// chatComponent is the subset of the chat object format the MOTD uses.
type chatComponent struct {
	Text  string          `json:"text"`
	Extra []chatComponent `json:"extra"`
}

func (c chatComponent) flatten() string {
	out := c.Text
	for _, e := range c.Extra {
		out += e.flatten()
	}
	return out
}

func flattenDescription(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var c chatComponent
	if err := json.Unmarshal(raw, &c); err == nil {
		return c.flatten()
	}
	return ""
}

var formattingRe = regexp.MustCompile(`§[0-9a-fklmnor]`)

// StripFormatting removes legacy § color/style codes from server text.
func StripFormatting(s string) string {
	return formattingRe.ReplaceAllString(s, "")
}

// writeFrame writes a varint-length-prefixed packet.
func writeFrame(conn net.Conn, payload []byte) error {
	var buf bytes.Buffer
	writeVarInt(&buf, len(payload))
	buf.Write(payload)
	_, err := conn.Write(buf.Bytes())
	return err
}

const maxFrame = 1 << 21 // 2 MiB, generous for a status document

func readFrame(conn net.Conn) ([]byte, error) {
	length, err := readVarInt(byteReader{conn})
	if err != nil {
		return nil, err
	}
	if length < 0 || length > maxFrame {
		return nil, fmt.Errorf("invalid frame length %d", length)
	}
	payload := make([]byte, length)
	if _, err := io.ReadFull(conn, payload); err != nil {
		return nil, err
	}
	return payload, nil
}

// byteReader adapts a net.Conn to io.ByteReader for varint decoding.
type byteReader struct{ r io.Reader }

func (b byteReader) ReadByte() (byte, error) {
	var one [1]byte
	_, err := io.ReadFull(b.r, one[:])
	return one[0], err
}

func writeVarInt(buf *bytes.Buffer, v int) {
	u := uint32(v)
	for {
		b := byte(u & 0x7f)
		u >>= 7
		if u != 0 {
			b |= 0x80
		}
		buf.WriteByte(b)
		if u == 0 {
			return
		}
	}
}

func readVarInt(r io.ByteReader) (int, error) {
	var value uint32
	for shift := 0; shift < 35; shift += 7 {
		b, err := r.ReadByte()
		if err != nil {
			return 0, err
		}
		value |= uint32(b&0x7f) << shift
		if b&0x80 == 0 {
			return int(int32(value)), nil
		}
	}
	return 0, fmt.Errorf("varint too long")
}
