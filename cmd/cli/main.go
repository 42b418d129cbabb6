package main

import (
	"flag"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"strings"

	"github.com/vbauerster/mpb/v8"
	"github.com/vbauerster/mpb/v8/decor"

	"github.com/himanishpuri/WakeFeed/pkg/logger"
	"github.com/himanishpuri/WakeFeed/pkg/models"
	"github.com/himanishpuri/WakeFeed/pkg/wakefeed"
	"github.com/himanishpuri/WakeFeed/pkg/wakefeed/store"
)

// Global flags
var (
	logLevel string
)

func init() {
	// Global flags that can be used with any command
	flag.StringVar(&logLevel, "log-level", os.Getenv("WAKEFEED_LOG_LEVEL"), "Log verbosity: debug, info, warn, fatal")
}

func main() {
	flag.Parse()

	log := logger.GetLogger()
	if logLevel != "" {
		if lvl, ok := logger.ParseLevel(logLevel); ok {
			log.SetLevel(lvl)
		} else {
			log.Warnf("Unknown log level %q, keeping current level", logLevel)
		}
	}

	printBanner()

	args := flag.Args()
	if len(args) < 1 {
		printUsage()
		os.Exit(1)
	}

	command := args[0]
	log.Infof("Executing command: %s", command)

	switch command {
	case "info":
		handleInfo(args[1:])
	case "batches":
		handleBatches(args[1:])
	case "labels":
		handleLabels(args[1:])
	case "prune":
		handlePrune(args[1:])
	case "convert":
		handleConvert(args[1:])
	default:
		fmt.Printf("Unknown command: %s\n", command)
		printUsage()
		os.Exit(1)
	}
}

func printBanner() {
	banner := `
__        __    _        _____              _
\ \      / /_ _| | _____|  ___|__  ___  __| |
 \ \ /\ / / _` + "`" + ` | |/ / _ \ |_ / _ \/ _ \/ _` + "`" + ` |
  \ V  V / (_| |   <  __/  _|  __/  __/ (_| |
   \_/\_/ \__,_|_|\_\___|_|  \___|\___|\__,_|

        Wake-word Training Data Feeder
`
	fmt.Println(banner)
}

// splitPathArgs peels leading non-flag arguments off args so commands can
// take their store paths either before or after the flags.
func splitPathArgs(args []string, n int) (paths []string, flagArgs []string) {
	for i, arg := range args {
		if strings.HasPrefix(arg, "-") || len(paths) == n {
			flagArgs = args[i:]
			break
		}
		paths = append(paths, arg)
	}
	return paths, flagArgs
}

// openStore picks a backend from the file extension.
func openStore(path string) (wakefeed.FeatureStore, func() error, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".far":
		a, err := store.OpenArchive(path)
		if err != nil {
			return nil, nil, err
		}
		return a, a.Close, nil
	case ".sqlite3", ".sqlite", ".db":
		s, err := store.OpenSQLite(path)
		if err != nil {
			return nil, nil, err
		}
		return s, s.Close, nil
	default:
		return nil, nil, fmt.Errorf("unrecognized store extension %q (want .far or .sqlite3)", filepath.Ext(path))
	}
}

// Dataset flags shared by the commands that build a dataset
type datasetFlags struct {
	batchSize int
	features  int
	seed      int64
	shuffle   bool
	progress  bool
}

func addDatasetFlags(fs *flag.FlagSet) *datasetFlags {
	df := &datasetFlags{}
	fs.IntVar(&df.batchSize, "batch", 32, "Records per batch")
	fs.IntVar(&df.features, "features", 40, "Advisory feature vector width")
	fs.Int64Var(&df.seed, "seed", 0, "Random seed (0 seeds from the clock)")
	fs.BoolVar(&df.shuffle, "shuffle", false, "Reshuffle record order at every epoch end")
	fs.BoolVar(&df.progress, "progress", false, "Show a progress bar while loading")
	return df
}

func buildDataset(st wakefeed.FeatureStore, df *datasetFlags) (*wakefeed.SequenceDataset, error) {
	opts := []wakefeed.Option{
		wakefeed.WithBatchSize(df.batchSize),
		wakefeed.WithNumFeatures(df.features),
		wakefeed.WithShuffle(df.shuffle),
		wakefeed.WithProgress(df.progress),
	}
	if df.seed != 0 {
		opts = append(opts, wakefeed.WithRand(rand.New(rand.NewSource(df.seed))))
	}
	return wakefeed.New(st, opts...)
}

func handleInfo(args []string) {
	log := logger.GetLogger()

	fs := flag.NewFlagSet("info", flag.ExitOnError)
	paths, flagArgs := splitPathArgs(args, 1)
	fs.Parse(flagArgs)
	paths = append(paths, fs.Args()...)
	if len(paths) < 1 {
		fmt.Println("Usage: wakefeed info <store>")
		os.Exit(1)
	}
	path := paths[0]

	st, closeStore, err := openStore(path)
	if err != nil {
		fmt.Printf("❌ Failed to open store: %v\n", err)
		log.Errorf("Opening store failed: %v", err)
		os.Exit(1)
	}
	defer closeStore()

	keys, err := st.Keys()
	if err != nil {
		fmt.Printf("❌ Failed to list store: %v\n", err)
		log.Errorf("Listing store failed: %v", err)
		os.Exit(1)
	}

	wakewords := 0
	for _, key := range keys {
		attrs, err := st.Attributes(key)
		if err != nil {
			fmt.Printf("❌ Failed to read %q: %v\n", key, err)
			log.Errorf("Reading attributes failed: %v", err)
			os.Exit(1)
		}
		if attrs.IsHotword == 1 {
			wakewords++
		}
	}

	var info models.StoreInfo
	switch s := st.(type) {
	case *store.Archive:
		info = s.Info()
	case *store.SQLiteStore:
		info, err = s.Info()
		if err != nil {
			log.Warnf("Reading store info failed: %v", err)
		}
	}

	fmt.Printf("📚 Store: %s\n", path)
	if info.DatasetID != "" {
		fmt.Printf("   Dataset ID: %s\n", info.DatasetID)
	}
	fmt.Printf("   Records:    %d\n", len(keys))
	if len(keys) > 0 {
		fmt.Printf("   Wakewords:  %d (%.1f%%)\n", wakewords, 100*float64(wakewords)/float64(len(keys)))
	} else {
		fmt.Printf("   Wakewords:  %d\n", wakewords)
	}
	fmt.Printf("   Negatives:  %d\n", len(keys)-wakewords)
	log.Infof("Store %s holds %d records (%d wakewords)", path, len(keys), wakewords)
}

func handleBatches(args []string) {
	log := logger.GetLogger()

	fs := flag.NewFlagSet("batches", flag.ExitOnError)
	df := addDatasetFlags(fs)
	epochs := fs.Int("epochs", 1, "Epochs to iterate")
	paths, flagArgs := splitPathArgs(args, 1)
	fs.Parse(flagArgs)
	paths = append(paths, fs.Args()...)
	if len(paths) < 1 {
		fmt.Println("Usage: wakefeed batches <store> [--batch <n>] [--epochs <n>] [--shuffle] [--seed <n>]")
		os.Exit(1)
	}

	st, closeStore, err := openStore(paths[0])
	if err != nil {
		fmt.Printf("❌ Failed to open store: %v\n", err)
		log.Errorf("Opening store failed: %v", err)
		os.Exit(1)
	}
	defer closeStore()

	ds, err := buildDataset(st, df)
	if err != nil {
		fmt.Printf("❌ Failed to load dataset: %v\n", err)
		log.Errorf("Dataset load failed: %v", err)
		os.Exit(1)
	}

	fmt.Printf("✅ Loaded %d records: %d batches of %d\n", ds.NumRecords(), ds.Len(), ds.BatchSize())
	leftover := ds.NumRecords() - ds.Len()*ds.BatchSize()
	if leftover > 0 {
		fmt.Printf("   %d records fall past the last full batch and are never served\n", leftover)
	}

	for e := 0; e < *epochs; e++ {
		if *epochs > 1 {
			fmt.Printf("\n📚 Epoch %d/%d\n", e+1, *epochs)
		}
		for i := 0; i < ds.Len(); i++ {
			features, labels, err := ds.Batch(i)
			if err != nil {
				fmt.Printf("❌ Batch %d failed: %v\n", i, err)
				log.Errorf("Batch %d failed: %v", i, err)
				os.Exit(1)
			}
			positives := 0
			for _, l := range labels {
				if l == 1 {
					positives++
				}
			}
			steps, width := 0, 0
			if len(features) > 0 {
				steps = len(features[0])
				if steps > 0 {
					width = len(features[0][0])
				}
			}
			fmt.Printf("   batch %3d: shape [%d x %d x %d], %d wakewords\n",
				i, len(features), steps, width, positives)
		}
		ds.OnEpochEnd()
	}
	log.Infof("Iterated %d epoch(s) over %d batches", *epochs, ds.Len())
}

func handleLabels(args []string) {
	log := logger.GetLogger()

	fs := flag.NewFlagSet("labels", flag.ExitOnError)
	df := addDatasetFlags(fs)
	out := fs.String("out", "", "Write CSV to this file instead of stdout")
	paths, flagArgs := splitPathArgs(args, 1)
	fs.Parse(flagArgs)
	paths = append(paths, fs.Args()...)
	if len(paths) < 1 {
		fmt.Println("Usage: wakefeed labels <store> [--out <csv>]")
		os.Exit(1)
	}

	st, closeStore, err := openStore(paths[0])
	if err != nil {
		fmt.Printf("❌ Failed to open store: %v\n", err)
		log.Errorf("Opening store failed: %v", err)
		os.Exit(1)
	}
	defer closeStore()

	ds, err := buildDataset(st, df)
	if err != nil {
		fmt.Printf("❌ Failed to load dataset: %v\n", err)
		log.Errorf("Dataset load failed: %v", err)
		os.Exit(1)
	}

	names, err := ds.Filenames()
	if err != nil {
		fmt.Printf("❌ %v\n", err)
		log.Errorf("Filenames unavailable: %v", err)
		os.Exit(1)
	}
	labels, err := ds.Labels()
	if err != nil {
		fmt.Printf("❌ %v\n", err)
		log.Errorf("Labels unavailable: %v", err)
		os.Exit(1)
	}

	w := os.Stdout
	if *out != "" {
		f, err := os.Create(*out)
		if err != nil {
			fmt.Printf("❌ Failed to create %s: %v\n", *out, err)
			log.Errorf("Creating output failed: %v", err)
			os.Exit(1)
		}
		defer f.Close()
		w = f
	}

	fmt.Fprintln(w, "file_name,label")
	for i := range names {
		fmt.Fprintf(w, "%s,%d\n", names[i], labels[i])
	}
	if *out != "" {
		fmt.Printf("✅ Wrote %d rows to %s\n", len(names), *out)
	}
	log.Infof("Emitted %d label rows", len(names))
}

func handlePrune(args []string) {
	log := logger.GetLogger()

	fs := flag.NewFlagSet("prune", flag.ExitOnError)
	df := addDatasetFlags(fs)
	keep := fs.Float64("keep", 0.5, "Fraction of the load-time wakeword count to keep")
	paths, flagArgs := splitPathArgs(args, 1)
	fs.Parse(flagArgs)
	paths = append(paths, fs.Args()...)
	if len(paths) < 1 {
		fmt.Println("Usage: wakefeed prune <store> --keep <ratio> [--batch <n>] [--seed <n>]")
		os.Exit(1)
	}

	st, closeStore, err := openStore(paths[0])
	if err != nil {
		fmt.Printf("❌ Failed to open store: %v\n", err)
		log.Errorf("Opening store failed: %v", err)
		os.Exit(1)
	}
	defer closeStore()

	ds, err := buildDataset(st, df)
	if err != nil {
		fmt.Printf("❌ Failed to load dataset: %v\n", err)
		log.Errorf("Dataset load failed: %v", err)
		os.Exit(1)
	}

	fmt.Printf("✅ Before: %d records (%d wakewords at load), %d batches of %d\n",
		ds.NumRecords(), ds.NumWakewords(), ds.Len(), ds.BatchSize())

	ds.PruneWakewords(*keep)

	fmt.Printf("   After:  %d records, %d batches\n", ds.NumRecords(), ds.Len())
	if labels, err := ds.Labels(); err == nil {
		positives := 0
		for _, l := range labels {
			if l == 1 {
				positives++
			}
		}
		fmt.Printf("   Wakewords now: %d (load-time baseline stays %d)\n", positives, ds.NumWakewords())
	}
	log.Infof("Pruned to keep ratio %.3f: %d records remain", *keep, ds.NumRecords())
}

func handleConvert(args []string) {
	log := logger.GetLogger()

	fs := flag.NewFlagSet("convert", flag.ExitOnError)
	progress := fs.Bool("progress", false, "Show a progress bar while converting")
	paths, flagArgs := splitPathArgs(args, 2)
	fs.Parse(flagArgs)
	paths = append(paths, fs.Args()...)
	if len(paths) < 2 {
		fmt.Println("Usage: wakefeed convert <src> <dst> [--progress]")
		os.Exit(1)
	}
	srcPath, dstPath := paths[0], paths[1]

	src, closeSrc, err := openStore(srcPath)
	if err != nil {
		fmt.Printf("❌ Failed to open source: %v\n", err)
		log.Errorf("Opening source failed: %v", err)
		os.Exit(1)
	}
	defer closeSrc()

	keys, err := src.Keys()
	if err != nil {
		fmt.Printf("❌ Failed to list source: %v\n", err)
		log.Errorf("Listing source failed: %v", err)
		os.Exit(1)
	}

	var (
		p   *mpb.Progress
		bar *mpb.Bar
	)
	if *progress {
		p = mpb.New(mpb.WithWidth(64))
		bar = p.AddBar(int64(len(keys)),
			mpb.PrependDecorators(
				decor.Name("Converting: "),
				decor.CountersNoUnit("%d / %d"),
			),
			mpb.AppendDecorators(
				decor.Percentage(),
			),
		)
	}
	done := func() {
		if p != nil {
			p.Wait()
		}
	}

	switch strings.ToLower(filepath.Ext(dstPath)) {
	case ".far":
		w, err := store.CreateArchive(dstPath)
		if err != nil {
			fmt.Printf("❌ Failed to create archive: %v\n", err)
			log.Errorf("Creating archive failed: %v", err)
			os.Exit(1)
		}
		for _, key := range keys {
			if err := copyRecord(src, key, w.Append); err != nil {
				w.Close()
				fmt.Printf("❌ %v\n", err)
				log.Errorf("Convert failed: %v", err)
				os.Exit(1)
			}
			if bar != nil {
				bar.Increment()
			}
		}
		done()
		if err := w.Close(); err != nil {
			fmt.Printf("❌ Failed to finalize archive: %v\n", err)
			log.Errorf("Closing archive failed: %v", err)
			os.Exit(1)
		}
		fmt.Printf("✅ Converted %d records to %s (dataset %s)\n", len(keys), dstPath, w.DatasetID())

	case ".sqlite3", ".sqlite", ".db":
		dst, err := store.OpenSQLite(dstPath)
		if err != nil {
			fmt.Printf("❌ Failed to open destination: %v\n", err)
			log.Errorf("Opening destination failed: %v", err)
			os.Exit(1)
		}
		defer dst.Close()

		entries := make([]store.Entry, 0, len(keys))
		for _, key := range keys {
			collect := func(k string, attrs models.Attributes, features [][]float32) error {
				entries = append(entries, store.Entry{Key: k, Attributes: attrs, Features: features})
				return nil
			}
			if err := copyRecord(src, key, collect); err != nil {
				fmt.Printf("❌ %v\n", err)
				log.Errorf("Convert failed: %v", err)
				os.Exit(1)
			}
			if bar != nil {
				bar.Increment()
			}
		}
		done()
		if err := dst.PutBatch(entries); err != nil {
			fmt.Printf("❌ Failed to write destination: %v\n", err)
			log.Errorf("Writing destination failed: %v", err)
			os.Exit(1)
		}
		fmt.Printf("✅ Converted %d records to %s\n", len(keys), dstPath)

	default:
		fmt.Printf("❌ Unrecognized destination extension %q (want .far or .sqlite3)\n", filepath.Ext(dstPath))
		os.Exit(1)
	}
	log.Infof("Converted %d records from %s to %s", len(keys), srcPath, dstPath)
}

// copyRecord reads one record from src and hands it to write.
func copyRecord(src wakefeed.FeatureStore, key string, write func(string, models.Attributes, [][]float32) error) error {
	attrs, err := src.Attributes(key)
	if err != nil {
		return fmt.Errorf("reading attributes of %q: %w", key, err)
	}
	features, err := src.Features(key)
	if err != nil {
		return fmt.Errorf("reading features of %q: %w", key, err)
	}
	if err := write(key, attrs, features); err != nil {
		return fmt.Errorf("writing %q: %w", key, err)
	}
	return nil
}

func printUsage() {
	fmt.Println("WakeFeed - Wake-word Training Data Feeder")
	fmt.Println("\nGlobal Options:")
	fmt.Println("  --log-level <level>  Log verbosity: debug, info, warn, fatal (env: WAKEFEED_LOG_LEVEL)")
	fmt.Println("\nStores are picked by extension: .far feature archives, .sqlite3/.sqlite/.db SQLite files.")
	fmt.Println("\nUsage:")
	fmt.Println("  wakefeed [global-options] info <store>")
	fmt.Println("  wakefeed [global-options] batches <store> [--batch <n>] [--features <n>] [--shuffle] [--seed <n>] [--epochs <n>] [--progress]")
	fmt.Println("  wakefeed [global-options] labels <store> [--out <csv>]")
	fmt.Println("  wakefeed [global-options] prune <store> --keep <ratio> [--batch <n>] [--seed <n>]")
	fmt.Println("  wakefeed [global-options] convert <src> <dst> [--progress]")
	fmt.Println("\nExamples:")
	fmt.Println("  # Inspect an archive")
	fmt.Println("  wakefeed info data/train.far")
	fmt.Println()
	fmt.Println("  # Drive two epochs with reshuffling, reproducibly")
	fmt.Println("  wakefeed batches data/train.far --batch 16 --shuffle --seed 7 --epochs 2")
	fmt.Println()
	fmt.Println("  # Keep half the wakewords and watch the batch count move")
	fmt.Println("  wakefeed prune data/train.far --keep 0.5 --seed 7")
	fmt.Println()
	fmt.Println("  # Copy an archive into SQLite")
	fmt.Println("  wakefeed convert data/train.far data/train.sqlite3")
}
