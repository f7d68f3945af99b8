package http1

import (
	"bytes"

	"github.com/indigo-web/h1/http"
	"github.com/indigo-web/h1/http/method"
	"github.com/indigo-web/h1/http/proto"
	"github.com/indigo-web/h1/http/status"
	"github.com/indigo-web/h1/kv"
	"github.com/indigo-web/utils/uf"
	"golang.org/x/net/http/httpguts"
)

// span marks a region of the raw head. All the strings of a parsed head are cut out of a
// single copy of it, so the head stays valid after the transport buffer is reused.
type span struct {
	from, to int
}

func (s span) of(raw string) string {
	return raw[s.from:s.to]
}

type field struct {
	key, value span
}

// headParser holds the state shared by both directions: the offset of the line being
// parsed and the fields collected so far.
type headParser struct {
	data       []byte
	offset     int
	maxHeaders int
	fields     []field
}

// skipEmptyLines skips CRLF (or bare LF) sequences. Returns false if the data ends
// before a non-empty line starts.
func skipEmptyLines(data []byte) (offset int, ok bool) {
	for offset < len(data) {
		switch data[offset] {
		case '\n':
			offset++
		case '\r':
			if offset+1 == len(data) {
				return offset, false
			}

			if data[offset+1] != '\n' {
				return offset, true
			}

			offset += 2
		default:
			return offset, true
		}
	}

	return offset, false
}

// findHeadEnd returns the offset right after the blank line terminating the head, or -1
// if there's no complete head yet.
func findHeadEnd(data []byte, offset int) int {
	for {
		lf := bytes.IndexByte(data[offset:], '\n')
		if lf == -1 {
			return -1
		}

		offset += lf + 1
		switch {
		case offset == len(data):
			return -1
		case data[offset] == '\n':
			return offset + 1
		case data[offset] == '\r':
			if offset+1 == len(data) {
				return -1
			}

			if data[offset+1] == '\n' {
				return offset + 2
			}
		}
	}
}

// nextLine returns the bounds of the line starting at the current offset without the
// line terminator and moves the offset past it. Must be called only within a complete head.
func (p *headParser) nextLine() span {
	lf := bytes.IndexByte(p.data[p.offset:], '\n')
	line := span{from: p.offset, to: p.offset + lf}
	p.offset += lf + 1

	if line.to > line.from && p.data[line.to-1] == '\r' {
		line.to--
	}

	return line
}

// parseFields parses header field lines up to (and including) the blank line.
func (p *headParser) parseFields() error {
	for {
		line := p.nextLine()
		if line.from == line.to {
			return nil
		}

		switch p.data[line.from] {
		case ' ', '\t':
			// obsolete line folding
			return status.ErrMalformedHeader
		}

		colon := bytes.IndexByte(p.data[line.from:line.to], ':')
		if colon <= 0 {
			return status.ErrMalformedHeader
		}

		key := span{from: line.from, to: line.from + colon}
		if !httpguts.ValidHeaderFieldName(uf.B2S(p.data[key.from:key.to])) {
			return status.ErrMalformedHeader
		}

		value := trimOWS(p.data, span{from: key.to + 1, to: line.to})
		if !httpguts.ValidHeaderFieldValue(uf.B2S(p.data[value.from:value.to])) {
			return status.ErrMalformedHeader
		}

		if len(p.fields) >= p.maxHeaders {
			return status.ErrTooManyHeaders
		}

		p.fields = append(p.fields, field{key: key, value: value})
	}
}

// headers materializes the collected fields. The raw string must be a copy of the head.
func (p *headParser) headers(raw string) *kv.Storage {
	headers := kv.NewPrealloc(len(p.fields))
	for _, f := range p.fields {
		headers.Add(f.key.of(raw), f.value.of(raw))
	}

	return headers
}

func trimOWS(data []byte, s span) span {
	for s.from < s.to && isOWS(data[s.from]) {
		s.from++
	}

	for s.to > s.from && isOWS(data[s.to-1]) {
		s.to--
	}

	return s
}

func isOWS(c byte) bool {
	return c == ' ' || c == '\t'
}

func parseProto(raw []byte) (proto.Proto, error) {
	if p := proto.FromBytes(raw); p != proto.Unknown {
		return p, nil
	}

	if len(raw) == len("HTTP/x.x") && bytes.HasPrefix(raw, []byte("HTTP/")) &&
		isDigit(raw[5]) && raw[6] == '.' && isDigit(raw[7]) {
		return proto.Unknown, status.ErrUnsupportedProtocol
	}

	return proto.Unknown, status.ErrMalformedStartLine
}

func isDigit(c byte) bool {
	return '0' <= c && c <= '9'
}

// validTarget rejects empty targets and targets containing control characters or spaces.
func validTarget(target []byte) bool {
	if len(target) == 0 {
		return false
	}

	for _, c := range target {
		if c <= ' ' || c == 0x7f {
			return false
		}
	}

	return true
}

// parseRequest parses `METHOD SP target SP version CRLF` followed by the fields.
func parseRequest(data []byte, maxHeaders int) (*http.RequestHead, int, error) {
	begin, ok := skipEmptyLines(data)
	if !ok {
		return nil, 0, nil
	}

	end := findHeadEnd(data, begin)
	if end == -1 {
		return nil, 0, nil
	}

	p := headParser{
		data:       data[:end],
		offset:     begin,
		maxHeaders: maxHeaders,
	}

	line := p.nextLine()
	requestLine := data[line.from:line.to]

	sp := bytes.IndexByte(requestLine, ' ')
	if sp <= 0 {
		return nil, 0, status.ErrMalformedStartLine
	}

	methodToken := requestLine[:sp]
	m := method.Parse(uf.B2S(methodToken))
	if m == method.Unknown {
		if httpguts.ValidHeaderFieldName(uf.B2S(methodToken)) {
			return nil, 0, status.ErrUnknownMethod
		}

		return nil, 0, status.ErrMalformedStartLine
	}

	targetLen := bytes.IndexByte(requestLine[sp+1:], ' ')
	if targetLen == -1 {
		return nil, 0, status.ErrMalformedStartLine
	}

	target := span{from: line.from + sp + 1, to: line.from + sp + 1 + targetLen}
	if !validTarget(data[target.from:target.to]) {
		return nil, 0, status.ErrMalformedStartLine
	}

	version, err := parseProto(data[target.to+1 : line.to])
	if err != nil {
		return nil, 0, err
	}

	if err = p.parseFields(); err != nil {
		return nil, 0, err
	}

	raw := string(data[:end])

	return &http.RequestHead{
		Proto: version,
		Subject: http.RequestLine{
			Method: m,
			Target: target.of(raw),
		},
		Headers: p.headers(raw),
	}, end, nil
}

// parseResponse parses `version SP 3DIGIT [SP reason] CRLF` followed by the fields.
func parseResponse(data []byte, maxHeaders int) (*http.ResponseHead, int, error) {
	end := findHeadEnd(data, 0)
	if end == -1 {
		return nil, 0, nil
	}

	p := headParser{
		data:       data[:end],
		maxHeaders: maxHeaders,
	}

	line := p.nextLine()
	statusLine := data[line.from:line.to]

	sp := bytes.IndexByte(statusLine, ' ')
	if sp == -1 {
		return nil, 0, status.ErrMalformedStartLine
	}

	version, err := parseProto(statusLine[:sp])
	if err != nil {
		return nil, 0, err
	}

	rest := statusLine[sp+1:]
	if len(rest) < 3 || (len(rest) > 3 && rest[3] != ' ') {
		return nil, 0, status.ErrMalformedStartLine
	}

	var code status.Code
	for _, c := range rest[:3] {
		if !isDigit(c) {
			return nil, 0, status.ErrMalformedStartLine
		}

		code = code*10 + status.Code(c-'0')
	}

	if code < 100 {
		return nil, 0, status.ErrMalformedStartLine
	}

	reason := span{from: line.to, to: line.to}
	if len(rest) > 3 {
		reason.from = line.from + sp + 1 + 4
	}

	if !httpguts.ValidHeaderFieldValue(uf.B2S(data[reason.from:reason.to])) {
		return nil, 0, status.ErrMalformedStartLine
	}

	if err = p.parseFields(); err != nil {
		return nil, 0, err
	}

	raw := string(data[:end])

	return &http.ResponseHead{
		Proto: version,
		Subject: http.RawStatus{
			Code:   code,
			Reason: reason.of(raw),
		},
		Headers: p.headers(raw),
	}, end, nil
}
