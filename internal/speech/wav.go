package speech

import (
	"encoding/binary"
	"fmt"
	"io"
)

// readWAVPCM16 returns the mono PCM16 samples of a WAV file, averaging
// stereo to mono. The sample rate must match wantRate; no resampling is done.
func readWAVPCM16(r io.Reader, wantRate uint32) ([]byte, error) {
	b, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	if len(b) < 44 || string(b[0:4]) != "RIFF" || string(b[8:12]) != "WAVE" {
		return nil, fmt.Errorf("not a WAV")
	}
	off := 12
	var dataOff, dataLen int
	var channels uint16
	var rate uint32
	for off+8 <= len(b) {
		cid := string(b[off : off+4])
		csz := int(binary.LittleEndian.Uint32(b[off+4 : off+8]))
		off += 8
		if cid == "fmt " {
			if off+16 > len(b) {
				return nil, fmt.Errorf("bad fmt chunk")
			}
			tag := binary.LittleEndian.Uint16(b[off:])
			channels = binary.LittleEndian.Uint16(b[off+2:])
			rate = binary.LittleEndian.Uint32(b[off+4:])
			bits := binary.LittleEndian.Uint16(b[off+14:])
			if tag != 1 || bits != 16 {
				return nil, fmt.Errorf("unsupported WAV format")
			}
			off += csz
		} else if cid == "data" {
			dataOff = off
			dataLen = csz
			break
		} else {
			off += csz
		}
	}
	if dataOff <= 0 {
		return nil, fmt.Errorf("no data chunk")
	}
	// Streamed WAVs may leave the data size unset; take the rest of the file.
	if dataLen <= 0 || dataOff+dataLen > len(b) {
		dataLen = len(b) - dataOff
	}
	if rate != wantRate {
		return nil, fmt.Errorf("unsupported sample rate %d", rate)
	}
	raw := b[dataOff : dataOff+dataLen]
	if channels == 2 {
		out := make([]byte, len(raw)/2)
		for i := 0; i+3 < len(raw); i += 4 {
			a := int16(binary.LittleEndian.Uint16(raw[i:]))
			c := int16(binary.LittleEndian.Uint16(raw[i+2:]))
			binary.LittleEndian.PutUint16(out[i/2:], uint16(int16((int32(a)+int32(c))/2)))
		}
		raw = out
	}
	return raw, nil
}
