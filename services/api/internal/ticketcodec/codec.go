// Package ticketcodec turns a ticket record into the compact blob held by the
// ticket cache: deterministic CBOR, then deflate.
package ticketcodec

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/cimillas/panache/services/api/internal/domain"
	"github.com/fxamacker/cbor/v2"
	"github.com/klauspost/compress/flate"
)

// ErrMalformed is returned for blobs that did not come out of Encode.
var ErrMalformed = errors.New("ticketcodec: malformed blob")

// maxDecoded bounds the inflated size of a single record.
const maxDecoded = 1 << 20

var (
	encMode cbor.EncMode
	decMode cbor.DecMode
)

func init() {
	var err error
	encMode, err = cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic("ticketcodec: CBOR encoder initialization failed: " + err.Error())
	}
	decMode, err = cbor.DecOptions{
		DupMapKey:         cbor.DupMapKeyEnforcedAPF,
		ExtraReturnErrors: cbor.ExtraDecErrorUnknownField,
	}.DecMode()
	if err != nil {
		panic("ticketcodec: CBOR decoder initialization failed: " + err.Error())
	}
}

// flate writers are comparatively expensive to build; hydration encodes every
// ticket in the store so they are pooled.
var writers = sync.Pool{
	New: func() any {
		w, err := flate.NewWriter(nil, flate.BestCompression)
		if err != nil {
			panic("ticketcodec: flate writer initialization failed: " + err.Error())
		}
		return w
	},
}

// Encode serializes a record. The record is validated first so a malformed
// projection never reaches the cache.
func Encode(rec domain.TicketRecord) ([]byte, error) {
	if err := rec.Validate(); err != nil {
		return nil, err
	}
	raw, err := encMode.Marshal(rec)
	if err != nil {
		return nil, fmt.Errorf("ticketcodec: marshal %s: %w", rec.Code, err)
	}

	var buf bytes.Buffer
	w := writers.Get().(*flate.Writer)
	defer writers.Put(w)
	w.Reset(&buf)
	if _, err := w.Write(raw); err != nil {
		return nil, fmt.Errorf("ticketcodec: compress %s: %w", rec.Code, err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("ticketcodec: compress %s: %w", rec.Code, err)
	}
	return buf.Bytes(), nil
}

// Decode restores a record produced by Encode.
func Decode(blob []byte) (domain.TicketRecord, error) {
	if len(blob) == 0 {
		return domain.TicketRecord{}, ErrMalformed
	}
	r := flate.NewReader(bytes.NewReader(blob))
	defer r.Close()

	raw, err := io.ReadAll(io.LimitReader(r, maxDecoded+1))
	if err != nil {
		return domain.TicketRecord{}, fmt.Errorf("%w: inflate: %v", ErrMalformed, err)
	}
	if len(raw) > maxDecoded {
		return domain.TicketRecord{}, fmt.Errorf("%w: record exceeds %d bytes", ErrMalformed, maxDecoded)
	}

	var rec domain.TicketRecord
	if err := decMode.Unmarshal(raw, &rec); err != nil {
		return domain.TicketRecord{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if err := rec.Validate(); err != nil {
		return domain.TicketRecord{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return rec, nil
}
