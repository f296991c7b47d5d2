package main

import (
	"bytes"
	"fmt"
	"math/rand"
	"os"
	"strings"
)

// corpusNames lists the built in generators.
var corpusNames = []string{"random", "text", "repetitive"}

// Corpus is one input for the benchmark.
type Corpus struct {
	Name string
	Data []byte
}

var words = strings.Fields(`the of and to in is that for it as was with be by on not he
	this are or his from at which but have an they you were her she there been one all
	block stream sort suffix table symbol huffman code length tree bit byte run length`)

// generate builds a corpus of size bytes from a fixed seed, so runs are comparable.
func generate(name string, size int) (Corpus, error) {
	rng := rand.New(rand.NewSource(int64(size)))
	data := make([]byte, 0, size)

	switch name {
	case "random":
		data = data[:size]
		rng.Read(data)
	case "text":
		var buf bytes.Buffer
		for buf.Len() < size {
			buf.WriteString(words[rng.Intn(len(words))])
			if rng.Intn(12) == 0 {
				buf.WriteString(".\n")
			} else {
				buf.WriteByte(' ')
			}
		}
		data = buf.Bytes()[:size]
	case "repetitive":
		// Long runs and a short period exercise RLE and the fallback sort.
		pattern := []byte("abababababababab")
		for len(data) < size {
			if rng.Intn(4) == 0 {
				data = append(data, bytes.Repeat([]byte{byte(rng.Intn(256))}, rng.Intn(300))...)
			} else {
				data = append(data, pattern...)
			}
		}
		data = data[:size]
	default:
		return Corpus{}, fmt.Errorf("unknown corpus %q (known: %s)", name, strings.Join(corpusNames, ", "))
	}
	return Corpus{Name: name, Data: data}, nil
}

// loadCorpora builds the named generators, or reads files when a name starts
// with '@'.
func loadCorpora(list string, size int) ([]Corpus, error) {
	names := strings.Split(list, ",")
	if list == "all" {
		names = corpusNames
	}

	corpora := make([]Corpus, 0, len(names))
	for _, name := range names {
		name = strings.TrimSpace(name)
		if path, ok := strings.CutPrefix(name, "@"); ok {
			data, err := os.ReadFile(path)
			if err != nil {
				return nil, fmt.Errorf("failed to read corpus: %w", err)
			}
			corpora = append(corpora, Corpus{Name: path, Data: data})
			continue
		}
		c, err := generate(name, size)
		if err != nil {
			return nil, err
		}
		corpora = append(corpora, c)
	}
	return corpora, nil
}
