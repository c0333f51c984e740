package main

import (
	"bufio"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
)

const (
	stampLayout = "2006-01-02 15:04:05"
	roundGap    = 10 * time.Minute
)

// round is one simulated coinjoin; even indexes are maker rounds, odd are taker rounds.
type round struct {
	index    int
	start    time.Time
	mixdepth int
	amount   int64
	txid     string
	spent    string // outpoint spent by a taker round
}

func (r round) maker() bool { return r.index%2 == 0 }

func newRounds(n int, start time.Time) []round {
	rounds := make([]round, n)
	for i := range rounds {
		rounds[i] = round{
			index:    i,
			start:    start.Add(time.Duration(i) * roundGap),
			mixdepth: i % 5,
			amount:   int64(100000 + i*1000),
			txid:     randomTxID(),
			spent:    randomTxID() + ":1",
		}
	}
	return rounds
}

func randomTxID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}

type lineWriter struct {
	w     *bufio.Writer
	at    time.Time
	lines int
}

func (lw *lineWriter) event(offset time.Duration, module, payload string) {
	ts := lw.at.Add(offset)
	fmt.Fprintf(lw.w, "%s,%03d [INFO]  [%s]  %s\n", ts.Format(stampLayout), ts.Nanosecond()/1e6, module, payload)
	lw.lines++
}

func (lw *lineWriter) raw(line string) {
	lw.w.WriteString(line)
	lw.w.WriteByte('\n')
	lw.lines++
}

// writeRounds renders rounds as JoinMarket log lines and returns the number of lines written.
func writeRounds(w io.Writer, rounds []round) (int, error) {
	lw := &lineWriter{w: bufio.NewWriter(w)}
	for _, r := range rounds {
		lw.at = r.start
		cjAddr := fmt.Sprintf("bc1qcj%d", r.index)
		change := fmt.Sprintf("bc1qch%d", r.index)

		if r.maker() {
			lw.event(0, "yieldgen", fmt.Sprintf("filling offer, mixdepth=%d, amount=%d", r.mixdepth, r.amount))
			lw.event(time.Second, "yieldgen", "sending output to address="+cjAddr)
			lw.event(2*time.Second, "maker", "obtained tx")
			lw.raw(fmt.Sprintf("{'inputs': [{'outpoint': '%s', 'nSequence': 4294967294}], 'outputs': [{'value_sats': %d, 'address': '%s'}]}", r.spent, r.amount, cjAddr))
			lw.event(3*time.Second, "yieldgen", "potentially earned = 0.00000250 BTC (250 sats)")
			lw.event(4*time.Second, "yieldgen", fmt.Sprintf("mycjaddr, mychange = %s, %s", cjAddr, change))
			lw.event(30*time.Second, "wallet_service", "Added utxos=")
			lw.raw(fmt.Sprintf("%s:0 - path: m/84'/0'/%d'/0/%d, address: %s, value: %d", r.txid, r.mixdepth, r.index, cjAddr, r.amount))
			lw.raw(fmt.Sprintf("%s:1 - path: m/84'/0'/%d'/1/%d, address: %s, value: %d", r.txid, r.mixdepth, r.index, change, 5000))
		} else {
			lw.event(0, "taker", "obtained tx")
			lw.raw(fmt.Sprintf("{'inputs': [{'outpoint': '%s', 'nSequence': 4294967294}], 'outputs': [{'value_sats': %d, 'address': '%s'}]}", r.spent, r.amount, cjAddr))
			lw.event(time.Second, "taker", fmt.Sprintf("schedule item was: [%d, %d, 3, '%s', 0, 16]", r.mixdepth, r.amount, cjAddr))
			lw.event(2*time.Second, "taker", "txid = "+r.txid)
			lw.event(20*time.Second, "wallet_service", "Removed utxos=")
			lw.raw(fmt.Sprintf("%s - path: m/84'/0'/%d'/0/%d, address: bc1qin%d, value: %d", r.spent, r.mixdepth, r.index, r.index, r.amount+5000))
		}
		lw.event(time.Minute, "jmdaemon", "JM daemon setup complete")
	}
	if err := lw.w.Flush(); err != nil {
		return lw.lines, err
	}
	return lw.lines, nil
}

// writeFile writes rounds to path, compressed according to its extension.
func writeFile(path string, rounds []round) (int, error) {
	f, err := os.Create(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	var w io.WriteCloser
	switch filepath.Ext(path) {
	case ".gz":
		w = gzip.NewWriter(f)
	case ".zst":
		zw, err := zstd.NewWriter(f)
		if err != nil {
			return 0, err
		}
		w = zw
	}
	if w == nil {
		return writeRounds(f, rounds)
	}
	n, err := writeRounds(w, rounds)
	if err != nil {
		w.Close()
		return n, err
	}
	return n, w.Close()
}

// split deals rounds out to files round robin, so every file interleaves with the others.
func split(rounds []round, files int) [][]round {
	out := make([][]round, files)
	for i, r := range rounds {
		out[i%files] = append(out[i%files], r)
	}
	return out
}

func main() {
	outDir := flag.String("out", "testlogs", "Directory to write logs into")
	files := flag.Int("files", 4, "Number of log files")
	rounds := flag.Int("rounds", 1000, "Number of coinjoin rounds")
	compress := flag.String("compress", "", "Compression for the files: gz, zst or empty")
	concurrency := flag.Int("c", 4, "Number of concurrent writers")
	flag.Parse()

	if *files < 1 || *concurrency < 1 {
		log.Fatal("files and concurrency must be positive")
	}
	ext := ".log"
	switch *compress {
	case "":
	case "gz", "zst":
		ext += "." + *compress
	default:
		log.Fatalf("unknown compression %q", *compress)
	}
	if err := os.MkdirAll(*outDir, 0755); err != nil {
		log.Fatalf("Failed to create output directory: %v", err)
	}

	log.Printf("Generating %d rounds into %d files in %s", *rounds, *files, *outDir)
	start := time.Now()
	perFile := split(newRounds(*rounds, time.Date(2023, 5, 1, 0, 0, 0, 0, time.UTC)), *files)

	var wg sync.WaitGroup
	var lineCount, errorCount atomic.Int64
	jobs := make(chan int)
	for i := 0; i < *concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for idx := range jobs {
				path := filepath.Join(*outDir, fmt.Sprintf("joinmarket-%02d%s", idx, ext))
				n, err := writeFile(path, perFile[idx])
				lineCount.Add(int64(n))
				if err != nil {
					log.Printf("Failed to write %s: %v", path, err)
					errorCount.Add(1)
				}
			}
		}()
	}
	for idx := range perFile {
		jobs <- idx
	}
	close(jobs)
	wg.Wait()

	log.Println("Generation finished.")
	log.Printf("Lines: %d", lineCount.Load())
	log.Printf("Errors: %d", errorCount.Load())
	log.Printf("Took: %s", time.Since(start))
	if errorCount.Load() > 0 {
		os.Exit(1)
	}
}
