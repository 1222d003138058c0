package tap

import (
	"testing"

	"example.com/me/rawtap/internal/buffer"
)

func TestRender_PreservesPosition(t *testing.T) {
	cases := []struct {
		name     string
		data     []byte
		position int
		want     string
	}{
		{"ascii from start", []byte("<presence/>"), 0, "<presence/>"},
		{"ascii from middle", []byte("skip<iq/>"), 4, "<iq/>"},
		{"multibyte", []byte("привет"), 0, "привет"},
		{"invalid utf8", []byte{'o', 'k', 0xff, 0xfe, '!'}, 0, "ok�!"},
		{"truncated rune", []byte{'a', 0xd0}, 1, "�"},
		{"empty window", []byte("done"), 4, ""},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			buf := buffer.Wrap(tc.data)
			if err := buf.SetPosition(tc.position); err != nil {
				t.Fatalf("SetPosition: %v", err)
			}

			got := Render(buf)

			if got != tc.want {
				t.Errorf("Неверный текст: ожидалось %q, получено %q", tc.want, got)
			}
			if buf.Position() != tc.position {
				t.Errorf("Позиция изменилась: была %d, стала %d", tc.position, buf.Position())
			}
			if buf.Limit() != len(tc.data) {
				t.Errorf("Limit изменился: %d", buf.Limit())
			}
		})
	}
}

func TestRender_DoesNotMutateContent(t *testing.T) {
	data := []byte{0xff, 'x'}
	buf := buffer.Wrap(data)

	Render(buf)

	if data[0] != 0xff || data[1] != 'x' {
		t.Errorf("Содержимое буфера изменилось: %v", data)
	}
}

func TestRender_Nil(t *testing.T) {
	if got := Render(nil); got != "" {
		t.Errorf("Ожидалась пустая строка, получено %q", got)
	}
}

func TestInboundText(t *testing.T) {
	if text, ok := inboundText("hello"); !ok || text != "hello" {
		t.Errorf("string: %q %t", text, ok)
	}
	if text, ok := inboundText(buffer.Wrap([]byte("raw"))); !ok || text != "raw" {
		t.Errorf("buffer: %q %t", text, ok)
	}
	if _, ok := inboundText(struct{}{}); ok {
		t.Error("Структурированные объекты не должны логироваться")
	}
}
