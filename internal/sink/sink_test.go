package sink

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestWriter_Log(t *testing.T) {
	var buf bytes.Buffer
	s := NewWriter(&buf)

	s.Log("first")
	s.Log("second")

	if buf.String() != "first\nsecond\n" {
		t.Errorf("Неверный вывод: %q", buf.String())
	}
}

func TestFile_Append(t *testing.T) {
	path := filepath.Join(t.TempDir(), "trace.log")

	for _, line := range []string{"one", "two"} {
		f, err := OpenFile(path)
		if err != nil {
			t.Fatalf("OpenFile: %v", err)
		}
		f.Log(line)
		if err := f.Close(); err != nil {
			t.Fatalf("Close: %v", err)
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if string(data) != "one\ntwo\n" {
		t.Errorf("Файл должен дополняться, получено %q", data)
	}
}

func TestMulti_Log(t *testing.T) {
	var a, b []string
	m := Multi{
		Func(func(l string) { a = append(a, l) }),
		Func(func(l string) { b = append(b, l) }),
	}
	m.Log("x")

	if len(a) != 1 || len(b) != 1 {
		t.Errorf("Строка должна попасть во все приемники: a=%v b=%v", a, b)
	}
}

func TestRing_Since(t *testing.T) {
	r := NewRing(3)
	for _, l := range []string{"a", "b", "c", "d", "e"} {
		r.Log(l)
	}

	entries := r.Since(0)
	var lines []string
	for _, e := range entries {
		lines = append(lines, e.Line)
	}
	if strings.Join(lines, "") != "cde" {
		t.Errorf("Ожидались последние 3 строки, получено %v", lines)
	}
	if entries[0].Seq != 3 {
		t.Errorf("Ожидался номер 3, получено %d", entries[0].Seq)
	}

	if got := r.Since(4); len(got) != 1 || got[0].Line != "e" {
		t.Errorf("Since(4) вернул %v", got)
	}
	if got := r.Since(r.LastSeq()); got != nil {
		t.Errorf("Since(last) должен вернуть nil, получено %v", got)
	}
}

func TestRing_Empty(t *testing.T) {
	r := NewRing(4)
	if r.LastSeq() != 0 {
		t.Errorf("Пустой буфер: ожидался номер 0, получено %d", r.LastSeq())
	}
	if got := r.Since(0); got != nil {
		t.Errorf("Пустой буфер вернул %v", got)
	}
}

func TestBroadcast_SubscribeAndDrop(t *testing.T) {
	b := NewBroadcast(NewRing(16))
	sub := b.Subscribe(1)
	defer sub.Close()

	b.Log("kept")
	b.Log("dropped")

	entry := <-sub.C
	if entry.Line != "kept" || entry.Seq != 1 {
		t.Errorf("Неверная строка: %+v", entry)
	}
	if sub.Dropped() != 1 {
		t.Errorf("Ожидалась 1 потерянная строка, получено %d", sub.Dropped())
	}
	if b.Ring().LastSeq() != 2 {
		t.Errorf("История должна содержать обе строки, последний номер %d", b.Ring().LastSeq())
	}
}

func TestBroadcast_CloseTwice(t *testing.T) {
	b := NewBroadcast(nil)
	sub := b.Subscribe(4)

	sub.Close()
	sub.Close()

	if b.Subscribers() != 0 {
		t.Errorf("Подписчик должен быть удален, осталось %d", b.Subscribers())
	}
	b.Log("after close")
	if _, ok := <-sub.C; ok {
		t.Error("Канал закрытой подписки должен быть закрыт")
	}
}
