package main

import (
	"bufio"
	"crypto/tls"
	"flag"
	"fmt"
	"net"
	"sort"
	"strings"
	"sync"
	"time"

	"example.com/me/rawtap/internal/compression"
	"golang.org/x/net/proxy"
)

// Metrics хранит метрики одной сессии
type Metrics struct {
	Connect      time.Duration
	TLSHandshake time.Duration
	Greeting     time.Duration
	RoundTrips   []time.Duration
	Success      bool
	Error        string
	BytesRead    int64
}

// Stats собирает статистику всех сессий
type Stats struct {
	mu           sync.Mutex
	Total        int
	Success      int
	Errors       map[string]int
	Connect      []time.Duration
	TLSHandshake []time.Duration
	Greeting     []time.Duration
	RoundTrip    []time.Duration
	TotalBytes   int64
}

// NewStats создает новую структуру статистики
func NewStats() *Stats {
	return &Stats{
		Errors: make(map[string]int),
	}
}

// Add добавляет результат сессии в статистику
func (s *Stats) Add(m Metrics) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.Total++
	if m.Success {
		s.Success++
	} else {
		s.Errors[m.Error]++
	}

	if m.Connect > 0 {
		s.Connect = append(s.Connect, m.Connect)
	}
	if m.TLSHandshake > 0 {
		s.TLSHandshake = append(s.TLSHandshake, m.TLSHandshake)
	}
	if m.Greeting > 0 {
		s.Greeting = append(s.Greeting, m.Greeting)
	}
	s.RoundTrip = append(s.RoundTrip, m.RoundTrips...)
	s.TotalBytes += m.BytesRead
}

// Percentile вычисляет перцентиль для слайса длительностей
func Percentile(durations []time.Duration, p float64) time.Duration {
	if len(durations) == 0 {
		return 0
	}
	sorted := make([]time.Duration, len(durations))
	copy(sorted, durations)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i] < sorted[j]
	})
	index := int(float64(len(sorted)) * p / 100.0)
	if index >= len(sorted) {
		index = len(sorted) - 1
	}
	return sorted[index]
}

// options параметры нагрузки
type options struct {
	addr        string
	socks       string
	useTLS      bool
	compress    string
	pings       int
	concurrency int
	sessions    int
}

// lineConn построчный обмен с сервером, опционально через zstd фреймы
type lineConn struct {
	conn    net.Conn
	reader  *bufio.Reader
	codec   *compression.Filter
	pending []byte
	lines   []string
	read    int64
}

func (c *lineConn) writeLine(line string) error {
	data := []byte(line + "\n")
	if c.codec != nil {
		data = c.codec.Encode(data)
	}
	_, err := c.conn.Write(data)
	return err
}

func (c *lineConn) readLine() (string, error) {
	if c.codec == nil {
		line, err := c.reader.ReadString('\n')
		c.read += int64(len(line))
		return strings.TrimSuffix(line, "\n"), err
	}

	for len(c.lines) == 0 {
		chunk := make([]byte, 4096)
		n, err := c.reader.Read(chunk)
		if err != nil {
			return "", err
		}
		c.read += int64(n)
		messages, rest, err := c.codec.Decode(append(c.pending, chunk[:n]...))
		if err != nil {
			return "", err
		}
		c.pending = rest
		for _, m := range messages {
			c.lines = append(c.lines, strings.Split(strings.TrimSuffix(string(m), "\n"), "\n")...)
		}
	}
	line := c.lines[0]
	c.lines = c.lines[1:]
	return line, nil
}

// dial устанавливает соединение напрямую или через SOCKS5
func dial(opts options) (net.Conn, error) {
	var dialer proxy.Dialer = proxy.Direct
	if opts.socks != "" {
		var err error
		dialer, err = proxy.SOCKS5("tcp", opts.socks, nil, proxy.Direct)
		if err != nil {
			return nil, fmt.Errorf("failed to create SOCKS5 dialer: %w", err)
		}
	}
	return dialer.Dial("tcp", opts.addr)
}

// runSession открывает одну сессию и выполняет opts.pings обменов PING/PONG
func runSession(opts options, codec *compression.Filter) (m Metrics) {
	start := time.Now()
	conn, err := dial(opts)
	if err != nil {
		m.Error = err.Error()
		return m
	}
	defer conn.Close()
	m.Connect = time.Since(start)
	conn.SetDeadline(time.Now().Add(30 * time.Second))

	if opts.useTLS {
		tlsStart := time.Now()
		tlsConn := tls.Client(conn, &tls.Config{InsecureSkipVerify: true})
		if err := tlsConn.Handshake(); err != nil {
			m.Error = fmt.Sprintf("tls handshake: %v", err)
			return m
		}
		m.TLSHandshake = time.Since(tlsStart)
		conn = tlsConn
	}

	lc := &lineConn{conn: conn, reader: bufio.NewReader(conn), codec: codec}
	defer func() { m.BytesRead = lc.read }()

	greetStart := time.Now()
	if _, err := lc.readLine(); err != nil {
		m.Error = fmt.Sprintf("greeting: %v", err)
		return m
	}
	m.Greeting = time.Since(greetStart)

	for i := 0; i < opts.pings; i++ {
		rtStart := time.Now()
		if err := lc.writeLine("PING"); err != nil {
			m.Error = err.Error()
			return m
		}
		reply, err := lc.readLine()
		if err != nil {
			m.Error = err.Error()
			return m
		}
		if reply != "PONG" {
			m.Error = fmt.Sprintf("unexpected reply %q", reply)
			return m
		}
		m.RoundTrips = append(m.RoundTrips, time.Since(rtStart))
	}

	lc.writeLine("QUIT")
	lc.readLine()
	m.Success = true
	return m
}

// runLoadTest запускает нагрузочный тест
func runLoadTest(opts options) {
	stats := NewStats()

	var codec *compression.Filter
	if opts.compress != "" {
		algorithm, err := compression.ParseAlgorithm(opts.compress)
		if err != nil {
			fmt.Printf("Error: %v\n", err)
			return
		}
		codec, err = compression.NewFilter(algorithm)
		if err != nil {
			fmt.Printf("Error creating compressor: %v\n", err)
			return
		}
		defer codec.Close()
	}

	semaphore := make(chan struct{}, opts.concurrency)
	var wg sync.WaitGroup

	fmt.Printf("Starting load test: %d sessions x %d pings, %d concurrent\n", opts.sessions, opts.pings, opts.concurrency)
	fmt.Printf("Target: %s (tls=%t, compression=%q)\n", opts.addr, opts.useTLS, opts.compress)
	if opts.socks != "" {
		fmt.Printf("Proxy: %s\n", opts.socks)
	}
	fmt.Println()

	startTime := time.Now()
	for i := 0; i < opts.sessions; i++ {
		wg.Add(1)
		semaphore <- struct{}{} // Acquire

		go func() {
			defer wg.Done()
			defer func() { <-semaphore }() // Release

			stats.Add(runSession(opts, codec))
		}()
	}

	wg.Wait()
	duration := time.Since(startTime)

	printReport(stats, duration)
}

// printReport выводит отчет в терминал
func printReport(stats *Stats, duration time.Duration) {
	stats.mu.Lock()
	defer stats.mu.Unlock()

	fmt.Println("==================================================================================")
	fmt.Println("LOAD TEST REPORT")
	fmt.Println("==================================================================================")
	fmt.Println()

	successRate := float64(stats.Success) / float64(stats.Total) * 100
	fmt.Printf("Success Rate\n")
	fmt.Println("+-------+-------+---------+")
	fmt.Printf("| VALUE | COUNT | PERCENT |\n")
	fmt.Println("+-------+-------+---------+")
	fmt.Printf("| ok    | %5d | %6.2f  |\n", stats.Success, successRate)
	if stats.Total-stats.Success > 0 {
		fmt.Printf("| error | %5d | %6.2f  |\n", stats.Total-stats.Success, 100-successRate)
	}
	fmt.Println("+-------+-------+---------+")
	fmt.Println()

	if len(stats.Errors) > 0 {
		fmt.Printf("Errors\n")
		fmt.Println("+---------------------------------+-------+---------+")
		fmt.Printf("| VALUE                           | COUNT | PERCENT |\n")
		fmt.Println("+---------------------------------+-------+---------+")
		for err, count := range stats.Errors {
			percent := float64(count) / float64(stats.Total) * 100
			errStr := err
			if len(errStr) > 31 {
				errStr = errStr[:28] + "..."
			}
			fmt.Printf("| %-31s | %5d | %6.2f  |\n", errStr, count, percent)
		}
		fmt.Println("+---------------------------------+-------+---------+")
		fmt.Println()
	}

	fmt.Printf("Latency (ms)\n")
	fmt.Println("+--------------+-------+-------+-------+-------+-------+-------+-------+")
	fmt.Printf("| NAME         |   50  |   75  |   85  |   90  |   95  |   99  |  100  |\n")
	fmt.Println("+--------------+-------+-------+-------+-------+-------+-------+-------+")

	printLatencyRow("Connect", stats.Connect)
	printLatencyRow("TLSHandshake", stats.TLSHandshake)
	printLatencyRow("Greeting", stats.Greeting)
	printLatencyRow("PING/PONG", stats.RoundTrip)
	fmt.Println("+--------------+-------+-------+-------+-------+-------+-------+-------+")
	fmt.Println()

	fmt.Printf("Summary\n")
	fmt.Printf("Total duration: %v\n", duration)
	fmt.Printf("Sessions/sec: %.2f\n", float64(stats.Total)/duration.Seconds())
	fmt.Printf("Round trips/sec: %.2f\n", float64(len(stats.RoundTrip))/duration.Seconds())
	if stats.TotalBytes > 0 {
		fmt.Printf("Throughput: %.2f KB/s\n", float64(stats.TotalBytes)/1024/duration.Seconds())
	}
}

// printLatencyRow выводит строку с перцентилями для метрики
func printLatencyRow(name string, durations []time.Duration) {
	if len(durations) == 0 {
		fmt.Printf("| %-12s | %5s | %5s | %5s | %5s | %5s | %5s | %5s |\n", name, "-", "-", "-", "-", "-", "-", "-")
		return
	}

	fmt.Printf("| %-12s | %5d | %5d | %5d | %5d | %5d | %5d | %5d |\n",
		name,
		Percentile(durations, 50).Milliseconds(),
		Percentile(durations, 75).Milliseconds(),
		Percentile(durations, 85).Milliseconds(),
		Percentile(durations, 90).Milliseconds(),
		Percentile(durations, 95).Milliseconds(),
		Percentile(durations, 99).Milliseconds(),
		Percentile(durations, 100).Milliseconds())
}

func main() {
	var opts options
	flag.StringVar(&opts.addr, "addr", "127.0.0.1:5222", "rawtap acceptor address")
	flag.StringVar(&opts.socks, "socks", "", "Optional SOCKS5 proxy address")
	flag.BoolVar(&opts.useTLS, "tls", false, "Use TLS (certificate is not verified)")
	flag.StringVar(&opts.compress, "compression", "", "Compression framing: zstd or lz4 (empty disables)")
	flag.IntVar(&opts.pings, "pings", 10, "PING round trips per session")
	flag.IntVar(&opts.concurrency, "c", 10, "Number of concurrent sessions")
	flag.IntVar(&opts.sessions, "n", 100, "Total number of sessions")
	flag.Parse()

	runLoadTest(opts)
}
