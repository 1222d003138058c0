package admin

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"time"

	"example.com/me/rawtap/internal/constants"
	"example.com/me/rawtap/internal/sink"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"
	"nhooyr.io/websocket"
)

// Поля кадра трассы
const (
	fieldSeq  = "seq"
	fieldLine = "line"
	fieldAt   = "at"
)

// EncodeEntry упаковывает строку трассы в structpb.Struct
func EncodeEntry(entry sink.Entry) (*structpb.Struct, error) {
	return structpb.NewStruct(map[string]any{
		fieldSeq:  float64(entry.Seq),
		fieldLine: entry.Line,
		fieldAt:   entry.At.UTC().Format(time.RFC3339Nano),
	})
}

// DecodeEntry извлекает строку трассы из structpb.Struct
func DecodeEntry(msg *structpb.Struct) (sink.Entry, error) {
	fields := msg.GetFields()
	line, ok := fields[fieldLine]
	if !ok {
		return sink.Entry{}, fmt.Errorf("trace frame without %q field", fieldLine)
	}
	entry := sink.Entry{
		Seq:  uint64(fields[fieldSeq].GetNumberValue()),
		Line: line.GetStringValue(),
	}
	if at := fields[fieldAt].GetStringValue(); at != "" {
		parsed, err := time.Parse(time.RFC3339Nano, at)
		if err != nil {
			return sink.Entry{}, fmt.Errorf("invalid %q field: %w", fieldAt, err)
		}
		entry.At = parsed
	}
	return entry, nil
}

// SendMessage отправляет Protocol Buffers сообщение через WebSocket:
// 4 байта длины (big-endian) и само сообщение в одном бинарном кадре
func SendMessage(ctx context.Context, conn *websocket.Conn, msg proto.Message) error {
	data, err := proto.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}

	frame := make([]byte, constants.FrameLengthSize+len(data))
	binary.BigEndian.PutUint32(frame, uint32(len(data)))
	copy(frame[constants.FrameLengthSize:], data)

	if err := conn.Write(ctx, websocket.MessageBinary, frame); err != nil {
		return fmt.Errorf("failed to write message: %w", err)
	}
	return nil
}

// ReadMessage читает кадр трассы из WebSocket.
// Нормальное закрытие соединения возвращается как io.EOF.
func ReadMessage(ctx context.Context, conn *websocket.Conn) (*structpb.Struct, error) {
	msgType, reader, err := conn.Reader(ctx)
	if err != nil {
		if errors.Is(err, io.EOF) || websocket.CloseStatus(err) == websocket.StatusNormalClosure {
			return nil, io.EOF
		}
		return nil, fmt.Errorf("failed to get reader: %w", err)
	}
	// Reader должен быть дочитан до конца перед следующим conn.Reader()
	defer io.Copy(io.Discard, reader)

	if msgType != websocket.MessageBinary {
		return nil, fmt.Errorf("unexpected message type: %v", msgType)
	}

	lengthBytes := make([]byte, constants.FrameLengthSize)
	if _, err := io.ReadFull(reader, lengthBytes); err != nil {
		return nil, fmt.Errorf("failed to read message length: %w", err)
	}
	length := binary.BigEndian.Uint32(lengthBytes)
	if length > constants.MaxFrameSize {
		return nil, fmt.Errorf("message of %d bytes exceeds limit", length)
	}

	messageBytes := make([]byte, length)
	if _, err := io.ReadFull(reader, messageBytes); err != nil {
		return nil, fmt.Errorf("failed to read message: %w", err)
	}

	msg := &structpb.Struct{}
	if err := proto.Unmarshal(messageBytes, msg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal message (length=%d): %w", length, err)
	}
	return msg, nil
}
