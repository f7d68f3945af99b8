package transport

// WriteBuf holds serialized bytes together with how much of them was already
// transferred, so a WouldBlock in the middle of a message can be resumed later.
type WriteBuf struct {
	Bytes []byte
	Pos   int
}

func NewWriteBuf(b []byte) *WriteBuf {
	return &WriteBuf{Bytes: b}
}

// IsWritten reports whether every byte was handed to the writer.
func (w *WriteBuf) IsWritten() bool {
	return w.Pos >= len(w.Bytes)
}

// WriteTo makes a single write attempt of the remaining bytes.
func (w *WriteBuf) WriteTo(dst Writer) (int, State, error) {
	if w.IsWritten() {
		return 0, Ready, nil
	}

	n, state, err := dst.TryWrite(w.Bytes[w.Pos:])
	w.Pos += n

	return n, state, err
}

// Reset reuses the WriteBuf for another message.
func (w *WriteBuf) Reset(b []byte) {
	w.Bytes, w.Pos = b, 0
}
