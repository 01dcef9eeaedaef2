// Package mc speaks the two Minecraft server protocols the bridge needs:
// the RCON remote console (rcon.go) and the Server List Ping status query
// (ping.go). Both clients are stateless: every call opens its own
// connection and closes it before returning.
package mc

import (
	"bytes"
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"net"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/wanderlust/wanderbridge/internal/sched"
)

// RCON packet types
const (
	packetLogin    = 3
	packetCommand  = 2
	packetResponse = 0
)

const maxRconPayload = 4096

// Client executes commands over the Minecraft RCON protocol. One TCP
// connection per command: dial, authenticate, send, read, close. The
// protocol allows long-lived sessions but a fresh connection per call
// keeps every invocation independent of prior failures.
type Client struct {
	Addr     string
	Password string
	Timeout  time.Duration
}

// NewClient creates an RCON client for host:port.
func NewClient(host string, port int, password string, timeout time.Duration) *Client {
	if timeout == 0 {
		timeout = 5 * time.Second
	}
	return &Client{
		Addr:     net.JoinHostPort(host, strconv.Itoa(port)),
		Password: password,
		Timeout:  timeout,
	}
}

// Execute runs a single command and returns the server's response text.
func (c *Client) Execute(command string) (string, error) {
	conn, err := net.DialTimeout("tcp", c.Addr, c.Timeout)
	if err != nil {
		return "", fmt.Errorf("connecting to %s: %w", c.Addr, err)
	}
	defer conn.Close()
	conn.SetDeadline(time.Now().Add(c.Timeout))

	if err := writeRconPacket(conn, 1, packetLogin, c.Password); err != nil {
		return "", fmt.Errorf("sending auth: %w", err)
	}
	id, _, _, err := readRconPacket(conn)
	if err != nil {
		return "", fmt.Errorf("reading auth response: %w", err)
	}
	if id == -1 {
		return "", fmt.Errorf("rcon auth rejected by %s", c.Addr)
	}

	if err := writeRconPacket(conn, 2, packetCommand, command); err != nil {
		return "", fmt.Errorf("sending command: %w", err)
	}
	_, _, body, err := readRconPacket(conn)
	if err != nil {
		return "", fmt.Errorf("reading response: %w", err)
	}
	return body, nil
}

// WaitUntilReachable polls Execute("list") until it succeeds, sleeping
// pollInterval between attempts. maxAttempts <= 0 retries forever. Each
// failed attempt is reported through onAttempt when non-nil.
func (c *Client) WaitUntilReachable(ctx context.Context, clk sched.Clock, pollInterval time.Duration, maxAttempts int, onAttempt func(attempt int)) error {
	for attempt := 1; ; attempt++ {
		if _, err := c.Execute("list"); err == nil {
			return nil
		}
		if onAttempt != nil {
			onAttempt(attempt)
		}
		if maxAttempts > 0 && attempt >= maxAttempts {
			return fmt.Errorf("server not reachable after %d attempts", attempt)
		}
		if err := clk.Sleep(ctx, pollInterval); err != nil {
			return err
		}
	}
}

// writeRconPacket frames a payload: int32 length, int32 request id,
// int32 type, NUL-terminated body, trailing NUL. All little-endian.
func writeRconPacket(conn net.Conn, id, typ int32, payload string) error {
	var buf bytes.Buffer
	binary.Write(&buf, binary.LittleEndian, int32(len(payload)+10))
	binary.Write(&buf, binary.LittleEndian, id)
	binary.Write(&buf, binary.LittleEndian, typ)
	buf.WriteString(payload)
	buf.Write([]byte{0, 0})
	_, err := conn.Write(buf.Bytes())
	return err
}

func readRconPacket(conn net.Conn) (id, typ int32, body string, err error) {
	var length int32
	if err = binary.Read(conn, binary.LittleEndian, &length); err != nil {
		return 0, 0, "", err
	}
	if length < 10 || length > maxRconPayload+10 {
		return 0, 0, "", fmt.Errorf("invalid packet length %d", length)
	}
	data := make([]byte, length)
	if _, err = readFull(conn, data); err != nil {
		return 0, 0, "", err
	}
	id = int32(binary.LittleEndian.Uint32(data[0:4]))
	typ = int32(binary.LittleEndian.Uint32(data[4:8]))
	body = string(bytes.TrimRight(data[8:], "\x00"))
	return id, typ, body, nil
}

func readFull(conn net.Conn, buf []byte) (int, error) {
	total := 0
	for total < len(buf) {
		n, err := conn.Read(buf[total:])
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

// PlayerList is the parsed result of the vanilla "list" command.
type PlayerList struct {
	Count int
	Names []string
}

var listRe = regexp.MustCompile(`There are (\d+) of a max of \d+ players online(?::\s*(.*))?`)

// ParseList extracts the player count and names from a "list" response
// like "There are 2 of a max of 20 players online: Alice, Bob".
func ParseList(response string) (PlayerList, error) {
	m := listRe.FindStringSubmatch(response)
	if m == nil {
		return PlayerList{}, fmt.Errorf("unrecognized list response: %q", response)
	}
	count, _ := strconv.Atoi(m[1])
	pl := PlayerList{Count: count}
	if m[2] != "" {
		for _, name := range strings.Split(m[2], ",") {
			if name = strings.TrimSpace(name); name != "" {
				pl.Names = append(pl.Names, name)
			}
		}
	}
	return pl, nil
}

// Online reports whether name is present in the list, case-insensitively.
func (p PlayerList) Online(name string) bool {
	for _, n := range p.Names {
		if strings.EqualFold(n, name) {
			return true
		}
	}
	return false
}

// Segment is one styled span of a tellraw broadcast.
type Segment struct {
	Text  string `json:"text"`
	Color string `json:"color,omitempty"`
	Bold  bool   `json:"bold,omitempty"`
}

// TellrawCommand builds a "tellraw @a" command from styled segments.
func TellrawCommand(segments []Segment) (string, error) {
	payload, err := json.Marshal(segments)
	if err != nil {
		return "", fmt.Errorf("encoding tellraw payload: %w", err)
	}
	return "tellraw @a " + string(payload), nil
}
