package compression

import (
	"encoding/binary"
	"errors"
	"fmt"

	"example.com/me/rawtap/internal/buffer"
	"example.com/me/rawtap/internal/chain"
	"example.com/me/rawtap/internal/constants"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// ErrFrameTooLarge заявленная длина фрейма превышает лимит
var ErrFrameTooLarge = errors.New("compressed frame too large")

const attrPending = "compression.pending"

// Algorithm алгоритм сжатия фреймов
type Algorithm uint8

const (
	// Zstd сжатие zstd, алгоритм по умолчанию
	Zstd Algorithm = iota
	// LZ4 блочное сжатие lz4
	LZ4
)

// String возвращает имя алгоритма
func (a Algorithm) String() string {
	switch a {
	case Zstd:
		return "zstd"
	case LZ4:
		return "lz4"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(a))
	}
}

// ParseAlgorithm разбирает имя алгоритма; пустое имя означает zstd
func ParseAlgorithm(name string) (Algorithm, error) {
	switch name {
	case "", "zstd":
		return Zstd, nil
	case "lz4":
		return LZ4, nil
	default:
		return 0, fmt.Errorf("unknown compression algorithm: %q", name)
	}
}

// lz4 payload: 1 байт режима, затем для lz4Block 4 байта исходной длины и блок
const (
	lz4Raw   byte = 0
	lz4Block byte = 1
)

// Filter стадия сжатия. На проводе каждый фрейм - 4 байта длины
// (big-endian) и сжатые данные. Encoder и Decoder zstd безопасны для
// конкурентного использования и разделяются всеми сессиями acceptor.
type Filter struct {
	chain.Adapter
	algorithm Algorithm
	encoder   *zstd.Encoder
	decoder   *zstd.Decoder
}

// NewFilter создает стадию сжатия выбранным алгоритмом
func NewFilter(algorithm Algorithm) (*Filter, error) {
	switch algorithm {
	case Zstd:
	case LZ4:
		return &Filter{algorithm: LZ4}, nil
	default:
		return nil, fmt.Errorf("unsupported compression algorithm: %s", algorithm)
	}

	encoder, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return nil, fmt.Errorf("zstd encoder initialization failed: %w", err)
	}
	decoder, err := zstd.NewReader(nil, zstd.WithDecoderMaxMemory(constants.MaxFrameSize))
	if err != nil {
		encoder.Close()
		return nil, fmt.Errorf("zstd decoder initialization failed: %w", err)
	}
	return &Filter{algorithm: Zstd, encoder: encoder, decoder: decoder}, nil
}

// Algorithm возвращает алгоритм стадии
func (f *Filter) Algorithm() Algorithm {
	return f.algorithm
}

// Close освобождает ресурсы zstd
func (f *Filter) Close() error {
	if f.algorithm != Zstd {
		return nil
	}
	f.decoder.Close()
	return f.encoder.Close()
}

// Encode сжимает данные в один фрейм
func (f *Filter) Encode(plain []byte) []byte {
	var compressed []byte
	if f.algorithm == LZ4 {
		compressed = compressLZ4(plain)
	} else {
		compressed = f.encoder.EncodeAll(plain, nil)
	}
	frame := make([]byte, constants.FrameLengthSize+len(compressed))
	binary.BigEndian.PutUint32(frame, uint32(len(compressed)))
	copy(frame[constants.FrameLengthSize:], compressed)
	return frame
}

func (f *Filter) decompress(payload []byte) ([]byte, error) {
	if f.algorithm == LZ4 {
		return decompressLZ4(payload)
	}
	plain, err := f.decoder.DecodeAll(payload, nil)
	if err != nil {
		return nil, fmt.Errorf("zstd decompress: %w", err)
	}
	return plain, nil
}

func compressLZ4(plain []byte) []byte {
	header := 1 + constants.FrameLengthSize
	out := make([]byte, header+lz4.CompressBlockBound(len(plain)))
	written, err := lz4.CompressBlock(plain, out[header:], nil)
	// несжимаемые данные передаются как есть
	if err != nil || written == 0 || written >= len(plain) {
		return append([]byte{lz4Raw}, plain...)
	}
	out[0] = lz4Block
	binary.BigEndian.PutUint32(out[1:], uint32(len(plain)))
	return out[:header+written]
}

func decompressLZ4(payload []byte) ([]byte, error) {
	if len(payload) == 0 {
		return nil, errors.New("lz4 decompress: empty payload")
	}
	switch payload[0] {
	case lz4Raw:
		return append([]byte(nil), payload[1:]...), nil
	case lz4Block:
	default:
		return nil, fmt.Errorf("lz4 decompress: unknown mode %d", payload[0])
	}

	header := 1 + constants.FrameLengthSize
	if len(payload) < header {
		return nil, errors.New("lz4 decompress: short header")
	}
	size := binary.BigEndian.Uint32(payload[1:])
	if size > constants.MaxFrameSize {
		return nil, fmt.Errorf("lz4 block of %d bytes: %w", size, ErrFrameTooLarge)
	}
	plain := make([]byte, size)
	read, err := lz4.UncompressBlock(payload[header:], plain)
	if err != nil {
		return nil, fmt.Errorf("lz4 decompress: %w", err)
	}
	if read != int(size) {
		return nil, fmt.Errorf("lz4 decompress: got %d bytes, expected %d", read, size)
	}
	return plain, nil
}

// Decode разбирает полные фреймы из data. Возвращает распакованные
// сообщения и неразобранный хвост.
func (f *Filter) Decode(data []byte) ([][]byte, []byte, error) {
	var messages [][]byte
	for len(data) >= constants.FrameLengthSize {
		length := binary.BigEndian.Uint32(data)
		if length > constants.MaxFrameSize {
			return nil, nil, fmt.Errorf("frame of %d bytes: %w", length, ErrFrameTooLarge)
		}
		end := constants.FrameLengthSize + int(length)
		if len(data) < end {
			break
		}
		plain, err := f.decompress(data[constants.FrameLengthSize:end])
		if err != nil {
			return nil, nil, err
		}
		messages = append(messages, plain)
		data = data[end:]
	}
	return messages, data, nil
}

// MessageReceived распаковывает входящие фреймы и передает каждый дальше буфером
func (f *Filter) MessageReceived(next chain.NextFilter, session chain.Session, message any) error {
	buf, ok := message.(*buffer.Buffer)
	if !ok {
		return next.MessageReceived(session, message)
	}

	var data []byte
	if pending, ok := session.Attribute(attrPending); ok {
		data = pending.([]byte)
	}
	data = append(data, buf.Bytes()...)
	buf.Skip(buf.Remaining())

	messages, rest, err := f.Decode(data)
	if err != nil {
		session.RemoveAttribute(attrPending)
		return err
	}
	if len(rest) == 0 {
		session.RemoveAttribute(attrPending)
	} else {
		session.SetAttribute(attrPending, append([]byte(nil), rest...))
	}

	for _, plain := range messages {
		if err := next.MessageReceived(session, buffer.Wrap(plain)); err != nil {
			return err
		}
	}
	return nil
}

// FilterWrite сжимает исходящий буфер в новый запрос; исходный буфер не меняется
func (f *Filter) FilterWrite(next chain.NextFilter, session chain.Session, request *chain.WriteRequest) error {
	buf, ok := request.Message.(*buffer.Buffer)
	if !ok {
		return next.FilterWrite(session, request)
	}
	return next.FilterWrite(session, &chain.WriteRequest{Message: buffer.Wrap(f.Encode(buf.Bytes()))})
}

// SessionClosed сбрасывает неполный фрейм
func (f *Filter) SessionClosed(next chain.NextFilter, session chain.Session) error {
	session.RemoveAttribute(attrPending)
	return next.SessionClosed(session)
}
