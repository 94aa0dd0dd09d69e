package storage

import (
	"bytes"
	"encoding/hex"
	"fmt"

	"github.com/klauspost/compress/zstd"
	"github.com/vmihailenco/msgpack/v4"
)

var (
	zstdEncoder *zstd.Encoder
	zstdDecoder *zstd.Decoder

	CompressionVersionZero   = []byte{0, 0, 0, 0}
	CompressionVersionLatest = CompressionVersionZero
)

func init() {
	enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		panic(err)
	}
	dec, err := zstd.NewReader(nil)
	if err != nil {
		panic(err)
	}
	zstdEncoder, zstdDecoder = enc, dec
}

func msgpackMarshalPanic(val interface{}) []byte {
	var buf bytes.Buffer
	enc := msgpack.NewEncoder(&buf).UseCompactEncoding(true).SortMapKeys(true)
	err := enc.Encode(val)
	if err != nil {
		panic(fmt.Errorf("msgpackMarshalPanic: %#v %s", val, err.Error()))
	}
	return buf.Bytes()
}

func msgpackUnmarshal(data []byte, val interface{}) error {
	err := msgpack.Unmarshal(data, val)
	if err == nil {
		return nil
	}
	return fmt.Errorf("msgpackUnmarshal: %s %s", hex.EncodeToString(data), err.Error())
}

func compressMsgpackMarshalPanic(val interface{}) []byte {
	payload := msgpackMarshalPanic(val)
	payload = zstdEncoder.EncodeAll(payload, nil)
	return append(append([]byte{}, CompressionVersionLatest...), payload...)
}

func decompressMsgpackUnmarshal(data []byte, val interface{}) error {
	header := len(CompressionVersionLatest)
	if len(data) < header*2 {
		return msgpackUnmarshal(data, val)
	}
	if !bytes.Equal(data[:header], CompressionVersionZero) {
		return msgpackUnmarshal(data, val)
	}
	payload, err := zstdDecoder.DecodeAll(data[header:], nil)
	if err != nil {
		return err
	}
	return msgpackUnmarshal(payload, val)
}
