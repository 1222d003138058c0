package tap

import (
	"testing"
	"time"

	"example.com/me/rawtap/internal/chain"
	"example.com/me/rawtap/internal/constants"
	"example.com/me/rawtap/internal/settings"
)

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("Условие не выполнено за 2 секунды")
}

// fakeHost отдает acceptor по каналам
type fakeHost map[string][]chain.Acceptor

func (h fakeHost) Acceptors(channel string) []chain.Acceptor {
	return h[channel]
}

func newTestDebugger(t *testing.T, channels ...string) (*Debugger, *settings.Store, *memorySink) {
	t.Helper()
	store, err := settings.Open("")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	out := &memorySink{}
	return NewDebugger(store, out, channels), store, out
}

func TestPropertyKey(t *testing.T) {
	if got := PropertyKey("C2S"); got != "plugin.debugger.c2s" {
		t.Errorf("Ожидалось plugin.debugger.c2s, получено %s", got)
	}
}

func TestDebugger_TapsPerChannel(t *testing.T) {
	d, _, _ := newTestDebugger(t, "C2S", "S2S", "C2S")

	taps := d.Taps()
	if len(taps) != 2 {
		t.Fatalf("Ожидалось 2 tap, получено %d", len(taps))
	}
	if taps[0].Prefix() != "C2S" || taps[1].Prefix() != "S2S" {
		t.Errorf("Неверный порядок tap: %s, %s", taps[0].Prefix(), taps[1].Prefix())
	}
	if _, ok := d.Tap("C2S"); !ok {
		t.Error("Tap C2S не найден")
	}
	if _, ok := d.Tap("XYZ"); ok {
		t.Error("Неизвестный канал не должен находиться")
	}
	for _, tp := range taps {
		if !tp.IsEnabled() {
			t.Errorf("Tap %s по умолчанию должен быть включен", tp.Prefix())
		}
	}
	if d.Name() != constants.PluginName {
		t.Errorf("Неверное имя плагина: %s", d.Name())
	}
}

func TestDebugger_InitAndClose(t *testing.T) {
	d, _, _ := newTestDebugger(t, "C2S", "S2S")

	c2s := &fakeAcceptor{chain: chain.New()}
	c2s.chain.AddLast(constants.TLSFilterName, chain.Adapter{})
	c2s.chain.AddLast(constants.CodecFilterName, chain.Adapter{})
	s2s := &fakeAcceptor{chain: chain.New()}
	var missing *fakeAcceptor

	host := fakeHost{
		"C2S": {c2s, missing},
		"S2S": {s2s},
	}
	if err := d.Init(host); err != nil {
		t.Fatalf("Init: %v", err)
	}

	want := []string{constants.TLSFilterName, FilterName, constants.CodecFilterName}
	names := c2s.chain.Names()
	if len(names) != len(want) {
		t.Fatalf("Ожидалось %v, получено %v", want, names)
	}
	for i := range want {
		if names[i] != want[i] {
			t.Errorf("Позиция %d: ожидалось %s, получено %s", i, want[i], names[i])
		}
	}
	if !s2s.chain.Contains(FilterName) {
		t.Error("Tap S2S не установлен")
	}

	// сессия, открытая до Close, тоже теряет tap
	tp, _ := d.Tap("C2S")
	sessionChain := c2s.chain.Clone()
	s := newFakeSession(1, "", sessionChain)
	sessionChain.FireSessionCreated(s)
	if !tp.Tracked(s) {
		t.Fatal("Сессия должна отслеживаться")
	}

	if err := d.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if c2s.chain.Contains(FilterName) || s2s.chain.Contains(FilterName) {
		t.Error("Tap должен быть снят с acceptor")
	}
	if sessionChain.Contains(FilterName) || tp.Sessions() != 0 {
		t.Error("Tap должен быть снят с открытых сессий")
	}
}

func TestDebugger_SettingsDriveTaps(t *testing.T) {
	d, store, out := newTestDebugger(t, "C2S")
	tp, _ := d.Tap("C2S")

	if err := tp.SetEnabled(false); err != nil {
		t.Fatalf("SetEnabled: %v", err)
	}
	waitFor(t, func() bool { return !tp.IsEnabled() })
	if store.Bool(PropertyKey("C2S"), true).Value() {
		t.Error("Значение должно сохраниться в настройках")
	}

	if d.LoggingWhitespace() {
		t.Error("Логирование пустых сообщений по умолчанию выключено")
	}
	if err := d.SetLoggingWhitespace(true); err != nil {
		t.Fatalf("SetLoggingWhitespace: %v", err)
	}
	waitFor(t, d.LoggingWhitespace)

	tp.SetEnabled(true)
	waitFor(t, tp.IsEnabled)

	c := chain.New()
	c.AddLast(FilterName, tp)
	c.FireMessageReceived(newFakeSession(3, "", c), "")
	if len(out.Lines()) != 1 {
		t.Errorf("Пустое сообщение должно логироваться: %v", out.Lines())
	}
}
