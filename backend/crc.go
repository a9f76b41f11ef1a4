package backend

import "github.com/edrusb/darchive/crc"

// CRCChannel wraps any Channel and folds every byte read or written
// between ResetCRC and GetCRC into a running CRC, per §4.1 "CRC
// attachment". It is itself a Channel, so it composes transparently into
// the stack.
type CRCChannel struct {
	Channel
	acc *crc.Accumulator
}

// WithCRC wraps inner so CRC tracking is available; tracking is inert
// until ResetCRC is called.
func WithCRC(inner Channel) *CRCChannel {
	return &CRCChannel{Channel: inner}
}

// ResetCRC starts (or restarts) CRC accumulation at the given width.
func (c *CRCChannel) ResetCRC(width int) {
	c.acc = crc.NewAccumulator(width)
}

// GetCRC finalises and returns the CRC accumulated since ResetCRC. It
// returns nil if ResetCRC was never called.
func (c *CRCChannel) GetCRC() []byte {
	if c.acc == nil {
		return nil
	}
	return c.acc.Sum().Bytes()
}

func (c *CRCChannel) Read(p []byte) (int, error) {
	n, err := c.Channel.Read(p)
	if n > 0 && c.acc != nil {
		_, _ = c.acc.Write(p[:n])
	}
	return n, err
}

func (c *CRCChannel) Write(p []byte) (int, error) {
	n, err := c.Channel.Write(p)
	if n > 0 && c.acc != nil {
		_, _ = c.acc.Write(p[:n])
	}
	return n, err
}
