// Package asi contains a driver for ASI Tiger motion controllers, which run
// the sample stage and emission filter wheel.  The controller speaks a short
// ASCII protocol over RS232 or TCP: commands end in CR, replies start with
// ":A" on success or ":N-<code>" on error and end in CRLF.
package asi

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"net"
	"strings"
	"time"

	"github.com/cenkalti/backoff"
	"github.com/tarm/serial"
)

// ErrNotConnected is generated when a command is issued before Open.
var ErrNotConnected = errors.New("asi: not connected to controller")

// Reply error codes from the Tiger manual, the ones worth naming.
var replyErrors = map[string]string{
	"-1": "unknown command",
	"-2": "unrecognized axis parameter",
	"-3": "missing parameter",
	"-4": "parameter out of range",
	"-5": "operation failed",
}

const commTimeout = 3 * time.Second

// remote is the serial-or-TCP connection to one controller.
type remote struct {
	addr     string
	isSerial bool
	conn     io.ReadWriteCloser

	// reader persists across commands so partially received replies are not
	// lost between timeout retries
	reader *bufio.Reader
}

func (r *remote) open() error {
	if r.conn != nil {
		return nil
	}
	if r.isSerial {
		cfg := &serial.Config{
			Name:        r.addr,
			Baud:        115200,
			ReadTimeout: commTimeout,
		}
		conn, err := serial.OpenPort(cfg)
		if err != nil {
			return err
		}
		r.conn = conn
		r.reader = bufio.NewReader(conn)
		return nil
	}
	conn, err := net.DialTimeout("tcp", r.addr, commTimeout)
	if err != nil {
		return err
	}
	r.conn = conn
	r.reader = bufio.NewReader(conn)
	return nil
}

func (r *remote) close() error {
	if r.conn == nil {
		return nil
	}
	err := r.conn.Close()
	r.conn = nil
	r.reader = nil
	return err
}

// txrx sends one command and scans for the CRLF-terminated reply.  Timeouts
// are retried with a bounded exponential backoff; the controller drops the
// line when it is busy homing and picks back up on its own.
func (r *remote) txrx(cmd string) (string, error) {
	if r.conn == nil {
		if err := r.open(); err != nil {
			return "", err
		}
	}
	// deadlines are absolute, so they are re-armed per command, not at open
	if con, ok := r.conn.(net.Conn); ok {
		con.SetWriteDeadline(time.Now().Add(commTimeout))
	}
	if _, err := io.WriteString(r.conn, cmd+"\r"); err != nil {
		return "", err
	}
	var resp string
	op := func() error {
		if con, ok := r.conn.(net.Conn); ok {
			con.SetReadDeadline(time.Now().Add(commTimeout))
		}
		line, err := r.reader.ReadString('\n')
		if err != nil {
			if strings.Contains(err.Error(), "timeout") {
				return err // retried
			}
			return backoff.Permanent(err)
		}
		resp = strings.TrimRight(line, "\r\n")
		return nil
	}
	err := backoff.Retry(op, &backoff.ExponentialBackOff{
		InitialInterval:     100 * time.Millisecond,
		RandomizationFactor: 0,
		Multiplier:          2,
		MaxInterval:         1 * time.Second,
		MaxElapsedTime:      10 * time.Second,
		Clock:               backoff.SystemClock,
	})
	return resp, err
}

// parseReply splits a controller reply into its payload, converting ":N"
// replies into errors.
func parseReply(resp string) (string, error) {
	resp = strings.TrimSpace(resp)
	switch {
	case strings.HasPrefix(resp, ":A"):
		return strings.TrimSpace(strings.TrimPrefix(resp, ":A")), nil
	case strings.HasPrefix(resp, ":N"):
		code := strings.TrimPrefix(resp, ":N")
		if msg, ok := replyErrors[code]; ok {
			return "", fmt.Errorf("asi: controller error %s: %s", code, msg)
		}
		return "", fmt.Errorf("asi: controller error %s", code)
	case resp == "":
		return "", errors.New("asi: empty reply from controller")
	}
	// status queries answer bare, without the :A prefix
	return resp, nil
}
