package main

import (
	"flag"
	"fmt"
	"image"
	"image/draw"
	"log"
	"math/rand"
	"os"
	"path/filepath"

	"github.com/eligwz/spectrogram"
	"github.com/google/uuid"

	"github.com/himanishpuri/WakeFeed/internal/synth"
	"github.com/himanishpuri/WakeFeed/pkg/wakefeed/store"
)

func main() {
	outDir := flag.String("out", "test/data", "Output directory")
	records := flag.Int("records", 100, "Number of utterances to synthesize")
	hotwordRatio := flag.Float64("hotword-ratio", 0.3, "Fraction of utterances that carry the wakeword")
	features := flag.Int("features", synth.DefaultNumFeatures, "Feature bins per frame")
	rate := flag.Int("rate", synth.DefaultSampleRate, "Sample rate in Hz")
	seed := flag.Int64("seed", 1, "Random seed")
	sqlite := flag.Bool("sqlite", false, "Also write a SQLite copy next to the archive")
	wavs := flag.Bool("wav", false, "Also dump each utterance as a WAV file")
	pngs := flag.Bool("png", false, "Also render a spectrogram PNG per utterance")
	flag.Parse()

	// Create output directory
	if err := os.MkdirAll(*outDir, 0755); err != nil {
		log.Fatal(err)
	}

	p := synth.DefaultParams()
	p.SampleRate = *rate
	p.NumFeatures = *features

	rng := rand.New(rand.NewSource(*seed))

	archivePath := filepath.Join(*outDir, "train.far")
	w, err := store.CreateArchive(archivePath)
	if err != nil {
		log.Fatal(err)
	}

	var entries []store.Entry

	for i := 0; i < *records; i++ {
		hotword := rng.Float64() < *hotwordRatio
		seconds := 1.5 + rng.Float64()*1.5
		utt, err := synth.Generate(rng, p, hotword, seconds)
		if err != nil {
			log.Fatal(err)
		}

		key := fmt.Sprintf("utt-%04d-%s", i, uuid.NewString()[:8])
		if err := w.Append(key, utt.Attributes(), utt.Features); err != nil {
			log.Fatal(err)
		}
		if *sqlite {
			entries = append(entries, store.Entry{
				Key:        key,
				Attributes: utt.Attributes(),
				Features:   utt.Features,
			})
		}

		if *wavs {
			if err := synth.WriteWAV(filepath.Join(*outDir, key+".wav"), utt.Samples, p.SampleRate); err != nil {
				log.Fatal(err)
			}
		}
		if *pngs {
			if err := renderPNG(filepath.Join(*outDir, key+".png"), utt.Samples, p.SampleRate); err != nil {
				log.Printf("Error rendering PNG for %s: %v", key, err)
			}
		}

		if hotword {
			fmt.Printf("Synthesized %s (wakeword, frames %d..%d of %d)\n",
				key, utt.SpeechStart, utt.SpeechEnd, len(utt.Features))
		} else {
			fmt.Printf("Synthesized %s (%d frames)\n", key, len(utt.Features))
		}
	}

	if err := w.Close(); err != nil {
		log.Fatal(err)
	}
	fmt.Printf("Wrote %d records to %s (dataset %s)\n", *records, archivePath, w.DatasetID())

	if *sqlite {
		dbPath := filepath.Join(*outDir, "train.sqlite3")
		db, err := store.OpenSQLite(dbPath)
		if err != nil {
			log.Fatal(err)
		}
		if err := db.PutBatch(entries); err != nil {
			db.Close()
			log.Fatal(err)
		}
		if err := db.Close(); err != nil {
			log.Fatal(err)
		}
		fmt.Printf("Wrote SQLite copy to %s\n", dbPath)
	}

	fmt.Println("Done!")
}

// renderPNG rasterizes the waveform's spectrogram for eyeballing the
// synthetic bursts.
func renderPNG(path string, samples []float64, sampleRate int) error {
	width := 512
	height := 256
	img := spectrogram.NewImage128(image.Rect(0, 0, width, height))

	// Fill with black background first
	black := spectrogram.ParseColor("000000")
	draw.Draw(img, img.Bounds(), image.NewUniform(black), image.Point{}, draw.Src)

	// RECTANGLE: false = use Hamming window
	// DFT: false = use FFT (faster)
	// MAG: true = magnitude
	// LOG10: false = linear scale
	spectrogram.Drawfft(
		img,
		samples,
		uint32(sampleRate),
		uint32(height), // bins
		false,          // RECTANGLE (use Hamming window)
		false,          // DFT (use FFT instead)
		true,           // MAG (magnitude)
		false,          // LOG10 (linear scale)
	)

	return spectrogram.SavePng(img, path)
}
