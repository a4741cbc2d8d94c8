package server

import (
	"embed"
	"math/rand/v2"
)

//go:embed samples/*.mp3
var samplesFS embed.FS

var sampleNames = []string{"sample1.mp3", "sample2.mp3", "sample3.mp3", "sample4.mp3"}

func randomSample() string {
	return sampleNames[rand.IntN(len(sampleNames))]
}

func readSample(name string) ([]byte, error) {
	return samplesFS.ReadFile("samples/" + name)
}
