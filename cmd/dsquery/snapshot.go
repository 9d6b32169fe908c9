package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/klauspost/compress/zstd"
	"github.com/nlstn/go-datasource"
)

// Snapshots whose file name ends in this suffix are zstd compressed.
const compressedSuffix = ".zst"

func saveSnapshot(path string, req *datasource.Request) error {
	data, err := datasource.MarshalRequest(req)
	if err != nil {
		return err
	}
	if strings.HasSuffix(path, compressedSuffix) {
		encoder, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
		if err != nil {
			return fmt.Errorf("failed to create zstd encoder: %w", err)
		}
		data = encoder.EncodeAll(data, make([]byte, 0, len(data)))
		if err := encoder.Close(); err != nil {
			return err
		}
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to save request: %w", err)
	}
	return nil
}

func loadSnapshot(path string) (*datasource.Request, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load request: %w", err)
	}
	if strings.HasSuffix(path, compressedSuffix) {
		decoder, err := zstd.NewReader(nil)
		if err != nil {
			return nil, fmt.Errorf("failed to create zstd decoder: %w", err)
		}
		defer decoder.Close()
		if data, err = decoder.DecodeAll(data, nil); err != nil {
			return nil, fmt.Errorf("failed to decompress request: %w", err)
		}
	}
	return datasource.UnmarshalRequest(data)
}
