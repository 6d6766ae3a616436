package persistence

import (
	"fmt"

	"github.com/bytedance/sonic"
	"github.com/klauspost/compress/zstd"

	"github.com/GriffinCanCode/divpanel/internal/shared/types"
)

// codec encodes options as zstd-compressed JSON
type codec struct {
	enc *zstd.Encoder
	dec *zstd.Decoder
}

func newCodec() (*codec, error) {
	enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return nil, fmt.Errorf("zstd encoder: %w", err)
	}
	dec, err := zstd.NewReader(nil)
	if err != nil {
		enc.Close()
		return nil, fmt.Errorf("zstd decoder: %w", err)
	}
	return &codec{enc: enc, dec: dec}, nil
}

func (c *codec) encode(opts types.PanelOptions) ([]byte, error) {
	raw, err := sonic.Marshal(opts)
	if err != nil {
		return nil, fmt.Errorf("encode options: %w", err)
	}
	return c.enc.EncodeAll(raw, nil), nil
}

func (c *codec) decode(payload []byte) (types.PanelOptions, error) {
	var opts types.PanelOptions
	raw, err := c.dec.DecodeAll(payload, nil)
	if err != nil {
		return opts, fmt.Errorf("decompress options: %w", err)
	}
	if err := sonic.Unmarshal(raw, &opts); err != nil {
		return opts, fmt.Errorf("decode options: %w", err)
	}
	return opts, nil
}

func (c *codec) close() {
	c.enc.Close()
	c.dec.Close()
}
