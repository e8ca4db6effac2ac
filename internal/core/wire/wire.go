// Package wire implements the framed text protocol spoken with remote viewers
//
// Every message is `<kind>#<total>;<payload>` where total is the byte length of the
// whole message, header included.
package wire

import (
	"bufio"
	"io"
	"strconv"

	perr "hitclust/internal/platform/errors"
)

// Kind is the one-letter message type
type Kind byte

// Message kinds
const (
	KindClusters  Kind = 'C'
	KindPixels    Kind = 'P'
	KindHistogram Kind = 'H'
	KindCounts    Kind = 'N'
	KindMessage   Kind = 'M'
	KindError     Kind = 'E'
	KindCommand   Kind = 'K'
	KindConfig    Kind = 'V'
	KindAck       Kind = 'A'
)

// Valid reports whether k is a known kind
func (k Kind) Valid() bool {
	switch k {
	case KindClusters, KindPixels, KindHistogram, KindCounts, KindMessage,
		KindError, KindCommand, KindConfig, KindAck:
		return true
	}
	return false
}

func (k Kind) String() string { return string(rune(k)) }

// DefaultMaxMessage bounds the size a Decoder accepts
const DefaultMaxMessage = 64 << 20

// Message is one decoded frame
type Message struct {
	Kind    Kind
	Payload []byte
}

// Text builds a message carrying a plain string (M, E, K, A)
func Text(k Kind, s string) Message { return Message{Kind: k, Payload: []byte(s)} }

// HeaderLen returns the header size for a payload of n bytes
// the header counts its own digits, so the length is a small fixpoint
func HeaderLen(n int) int {
	d := digits(n + 4)
	if digits(n+3+d) != d {
		d++
	}
	return 3 + d
}

func digits(n int) int {
	d := 1
	for n >= 10 {
		n /= 10
		d++
	}
	return d
}

// AppendFrame appends the framed message to dst
func AppendFrame(dst []byte, m Message) []byte {
	total := HeaderLen(len(m.Payload)) + len(m.Payload)
	dst = append(dst, byte(m.Kind), '#')
	dst = strconv.AppendInt(dst, int64(total), 10)
	dst = append(dst, ';')
	return append(dst, m.Payload...)
}

// Frame returns the framed message
func Frame(m Message) []byte { return AppendFrame(nil, m) }

// Parse decodes exactly one framed message held in b
func Parse(b []byte) (Message, error) {
	if len(b) < 4 {
		return Message{}, perr.Protocolf("message of %d bytes is shorter than a header", len(b))
	}
	k := Kind(b[0])
	if !k.Valid() {
		return Message{}, perr.Protocolf("unknown message kind %q", b[0])
	}
	if b[1] != '#' {
		return Message{}, perr.Protocolf("missing '#' after kind")
	}
	end := 2
	total := 0
	for ; end < len(b) && b[end] != ';'; end++ {
		c := b[end]
		if c < '0' || c > '9' || end-2 >= maxDigits {
			return Message{}, perr.Protocolf("bad length in header")
		}
		total = total*10 + int(c-'0')
	}
	if end == len(b) || end == 2 {
		return Message{}, perr.Protocolf("unterminated header")
	}
	if total != len(b) {
		return Message{}, perr.Protocolf("header says %d bytes, got %d", total, len(b))
	}
	return Message{Kind: k, Payload: b[end+1:]}, nil
}

const maxDigits = 12

// Encoder writes framed messages to an io.Writer
type Encoder struct {
	w   io.Writer
	buf []byte
}

// NewEncoder returns an encoder writing to w
func NewEncoder(w io.Writer) *Encoder { return &Encoder{w: w} }

// Encode writes one message
func (e *Encoder) Encode(m Message) error {
	e.buf = AppendFrame(e.buf[:0], m)
	_, err := e.w.Write(e.buf)
	return err
}

// Decoder reads framed messages from a byte stream
type Decoder struct {
	r   *bufio.Reader
	max int
}

// NewDecoder returns a decoder with the default size bound
func NewDecoder(r io.Reader) *Decoder {
	return &Decoder{r: bufio.NewReaderSize(r, 64*1024), max: DefaultMaxMessage}
}

// SetMax changes the size bound; non-positive values restore the default
func (d *Decoder) SetMax(n int) {
	if n <= 0 {
		n = DefaultMaxMessage
	}
	d.max = n
}

// Next reads the next message
// io.EOF is returned only on a clean boundary; a stream cut inside a frame is a protocol error
func (d *Decoder) Next() (Message, error) {
	kb, err := d.r.ReadByte()
	if err != nil {
		return Message{}, err
	}
	k := Kind(kb)
	if !k.Valid() {
		return Message{}, perr.Protocolf("unknown message kind %q", kb)
	}
	if b, err := d.r.ReadByte(); err != nil {
		return Message{}, truncated(err)
	} else if b != '#' {
		return Message{}, perr.Protocolf("missing '#' after kind %s", k)
	}

	total, n := 0, 0
	for {
		b, err := d.r.ReadByte()
		if err != nil {
			return Message{}, truncated(err)
		}
		if b == ';' {
			break
		}
		if b < '0' || b > '9' || n >= maxDigits {
			return Message{}, perr.Protocolf("bad length in %s header", k)
		}
		total = total*10 + int(b-'0')
		n++
	}
	head := 3 + n
	if n == 0 || total < head {
		return Message{}, perr.Protocolf("length %d shorter than its %s header", total, k)
	}
	if total > d.max {
		return Message{}, perr.Exhaustedf("%s message of %d bytes exceeds limit %d", k, total, d.max)
	}

	payload := make([]byte, total-head)
	if _, err := io.ReadFull(d.r, payload); err != nil {
		return Message{}, truncated(err)
	}
	return Message{Kind: k, Payload: payload}, nil
}

func truncated(err error) error {
	if err == io.EOF {
		err = io.ErrUnexpectedEOF
	}
	return perr.Wrap(err, perr.ErrorCodeProtocol, "truncated message")
}
