package display

import (
	"encoding/base64"
	"fmt"
	"io"
)

const (
	escapeStart = "\x1b_G"
	escapeEnd   = "\x1b\\"
	chunkSize   = 4096
)

// KittyEncoder writes png data using the kitty graphics protocol.
type KittyEncoder struct {
	out io.Writer
	// Columns limits the rendered width in terminal cells; zero means native size.
	Columns int
}

func NewKittyEncoder(out io.Writer, columns int) *KittyEncoder {
	return &KittyEncoder{out: out, Columns: columns}
}

func (e *KittyEncoder) Encode(png []byte) error {
	if len(png) == 0 {
		return nil
	}

	chunks := splitIntoChunks(base64.StdEncoding.EncodeToString(png), chunkSize)
	for i, chunk := range chunks {
		last := i == len(chunks)-1

		params := "m=1"
		switch {
		case i == 0 && last:
			params = e.header()
		case i == 0:
			params = e.header() + ",m=1"
		case last:
			params = "m=0"
		}

		if _, err := fmt.Fprintf(e.out, "%s%s;%s%s", escapeStart, params, chunk, escapeEnd); err != nil {
			return err
		}
	}
	return nil
}

func (e *KittyEncoder) header() string {
	h := "a=T,f=100,q=2"
	if e.Columns > 0 {
		h += fmt.Sprintf(",c=%d", e.Columns)
	}
	return h
}

func splitIntoChunks(s string, size int) []string {
	var chunks []string
	for len(s) > 0 {
		if len(s) < size {
			size = len(s)
		}
		chunks = append(chunks, s[:size])
		s = s[size:]
	}
	return chunks
}
