package kv

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/MoonlightOffice/IDBWrapper/cmd/util"
	gometrics "github.com/rcrowley/go-metrics"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	perfTestCmd = &cobra.Command{
		Use:     "perf",
		Short:   "Performance testing tool for the storage engines",
		Long:    "",
		RunE:    runPerf,
		PreRunE: processPerfConfig,
	}
	perfKeyPrefix        = "__test"
	perfLargeValueSizeKB = 1000
	perfNumThreads       = 10
	perfKeySpread        = 100
	perfNumOps           = 10000
	perfSkip             = make([]string, 0)
)

func init() {
	// add flags
	key := "skip"
	perfTestCmd.Flags().String(key, "", util.WrapString("Benchmarks to skip (comma separated - e.g. set,get)"))
	key = "threads"
	perfTestCmd.Flags().Int(key, 10, util.WrapString("Number of threads to use for the benchmark"))
	key = "large-value-size"
	perfTestCmd.Flags().Int(key, 1000, util.WrapString("How large the value for the set-large test should be (in KB)"))
	key = "keys"
	perfTestCmd.Flags().Int(key, 100, util.WrapString("How many different keys to use for the tests"))
	key = "ops"
	perfTestCmd.Flags().Int(key, 10000, util.WrapString("How many operations to run per benchmark"))
	key = "csv"
	perfTestCmd.Flags().String(key, "", util.WrapString("Optional path to save benchmark results as CSV"))
}

func processPerfConfig(cmd *cobra.Command, _ []string) error {
	if err := viper.BindPFlags(cmd.Flags()); err != nil {
		return err
	}

	// Read the configuration from the command line flags and environment variables
	perfLargeValueSizeKB = viper.GetInt("large-value-size")
	perfKeySpread = viper.GetInt("keys")
	perfNumThreads = viper.GetInt("threads")
	perfNumOps = viper.GetInt("ops")
	perfSkip = strings.Split(viper.GetString("skip"), ",")

	return nil
}

func runPerf(_ *cobra.Command, _ []string) error {
	ctx := context.Background()
	storeName := util.GetStoreName()

	fmt.Println("Performance testing tool for the storage engines")

	// Print configuration
	fmt.Println()
	fmt.Println("Configuration:")
	fmt.Printf("Engine: %s\n", viper.GetString("engine"))
	fmt.Printf("Codec: %s\n", viper.GetString("codec"))
	fmt.Printf("Database: %s (store %q)\n", viper.GetString("dbname"), storeName)
	fmt.Printf("Threads: %d\n", perfNumThreads)
	fmt.Printf("Operations: %d\n", perfNumOps)
	fmt.Println()

	fmt.Println("starting tests...")

	// Create results map
	results := make(map[string]gometrics.Timer)

	// set
	{
		getKey, iter := getKeys("set")
		timer := runBenchmark("set", func(n int) {
			if !kvStore.Put(ctx, storeName, getKey(n), []byte("test")) {
				fmt.Printf("(set) - error setting key %s\n", getKey(n))
			}
		})
		iter(func(k string) { kvStore.Delete(ctx, storeName, k) })
		results["set"] = timer
		printResult("set", timer)
	}

	// set-large
	{
		largeValue := make([]byte, perfLargeValueSizeKB*1024)
		getKey, iter := getKeys("set-large")
		timer := runBenchmark("set-large", func(n int) {
			if !kvStore.Put(ctx, storeName, getKey(n), largeValue) {
				fmt.Printf("(set-large) - error setting key %s\n", getKey(n))
			}
		})
		iter(func(k string) { kvStore.Delete(ctx, storeName, k) })
		results["set-large"] = timer
		printResult("set-large", timer)
	}

	// get
	{
		getKey, iter := getKeys("get")
		iter(func(k string) { kvStore.Put(ctx, storeName, k, []byte("test")) })
		timer := runBenchmark("get", func(n int) {
			if _, ok := kvStore.Get(ctx, storeName, getKey(n)); !ok {
				fmt.Printf("(get) - error getting key %s\n", getKey(n))
			}
		})
		iter(func(k string) { kvStore.Delete(ctx, storeName, k) })
		results["get"] = timer
		printResult("get", timer)
	}

	// delete
	{
		getKey, iter := getKeys("delete")
		iter(func(k string) { kvStore.Put(ctx, storeName, k, []byte("test")) })
		timer := runBenchmark("delete", func(n int) {
			if !kvStore.Delete(ctx, storeName, getKey(n)) {
				fmt.Printf("(delete) - error deleting key %s\n", getKey(n))
			}
		})
		results["delete"] = timer
		printResult("delete", timer)
	}

	// has
	{
		getKey, iter := getKeys("has")
		iter(func(k string) { kvStore.Put(ctx, storeName, k, []byte("test")) })
		timer := runBenchmark("has", func(n int) {
			kvStore.IsKeyExist(ctx, storeName, getKey(n))
		})
		iter(func(k string) { kvStore.Delete(ctx, storeName, k) })
		results["has"] = timer
		printResult("has", timer)
	}

	// has-not
	{
		timer := runBenchmark("has-not", func(n int) {
			key := fmt.Sprintf("%s/has-not-%d", perfKeyPrefix, n%100)
			kvStore.IsKeyExist(ctx, storeName, key) // absence expected
		})
		results["has-not"] = timer
		printResult("has-not", timer)
	}

	// keys
	{
		_, iter := getKeys("keys")
		iter(func(k string) { kvStore.Put(ctx, storeName, k, []byte("test")) })
		timer := runBenchmark("keys", func(n int) {
			kvStore.GetAllKeys(ctx, storeName)
		})
		iter(func(k string) { kvStore.Delete(ctx, storeName, k) })
		results["keys"] = timer
		printResult("keys", timer)
	}

	// mixed
	{
		getKey, iter := getKeys("mixed")
		iter(func(k string) { kvStore.Put(ctx, storeName, k, []byte("test")) })
		timer := runBenchmark("mixed", func(n int) {
			key := getKey(n)
			switch n % 4 {
			case 0: // set
				kvStore.Put(ctx, storeName, key, []byte("test"))
			case 1: // get
				kvStore.Get(ctx, storeName, key)
			case 2: // delete
				kvStore.Delete(ctx, storeName, key)
			case 3: // has
				kvStore.IsKeyExist(ctx, storeName, key)
			}
		})
		iter(func(k string) { kvStore.Delete(ctx, storeName, k) })
		results["mixed"] = timer
		printResult("mixed", timer)
	}

	// Write results to csv if specified
	if csvPath := viper.GetString("csv"); csvPath != "" {
		fmt.Printf("\nExporting results to CSV: %s\n", csvPath)
		if err := writeResultsToCSV(csvPath, results); err != nil {
			return fmt.Errorf("failed to export results to CSV: %v", err)
		}
		fmt.Println("Export complete")
	}

	return nil
}

// --------------------------------------------------------------------------
// Helper
// --------------------------------------------------------------------------

func shouldSkip(test string) bool {
	// Check if the test is in the skip list
	for _, skip := range perfSkip {
		if test == skip {
			return true
		}
	}
	return false
}

// runBenchmark spreads the configured number of operations over the worker
// goroutines and samples each operation's latency into a timer. A skipped
// benchmark returns an empty timer.
func runBenchmark(name string, op func(n int)) gometrics.Timer {
	timer := gometrics.NewTimer()
	if shouldSkip(name) {
		return timer
	}

	perWorker := perfNumOps / perfNumThreads
	if perWorker == 0 {
		perWorker = 1
	}

	var wg sync.WaitGroup
	for w := 0; w < perfNumThreads; w++ {
		w := w
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < perWorker; i++ {
				n := w*perWorker + i
				timer.Time(func() { op(n) })
			}
		}()
	}
	wg.Wait()

	return timer
}

// creates an array of test keys and functions to work with them
func getKeys(prefix string) (func(int) string, func(func(string))) {
	keys := make([]string, perfKeySpread)
	for i := 0; i < perfKeySpread; i++ {
		keys[i] = fmt.Sprintf("%s-%s-%d", perfKeyPrefix, prefix, i)
	}

	// Function to get a key by index (with wraparound)
	getKey := func(i int) string {
		return keys[i%perfKeySpread]
	}

	// Function to iterate over all keys and apply a function to each
	iterateKeys := func(fn func(string)) {
		for _, key := range keys {
			fn(key)
		}
	}

	return getKey, iterateKeys
}

// printResult prints the result of a benchmark test in a formatted way
func printResult(test string, timer gometrics.Timer) {
	if timer.Count() == 0 {
		fmt.Printf("%-20sskipped\n", test)
		return
	}

	mean := time.Duration(int64(timer.Mean()))
	p95 := time.Duration(int64(timer.Percentile(0.95)))

	// Print the formatted result
	fmt.Printf("%-20s%v/op (p95 %v)\t%.0f ops/sec\n", test, mean, p95, timer.RateMean())
}

// writeResultsToCSV writes benchmark results to a CSV file
func writeResultsToCSV(csvPath string, results map[string]gometrics.Timer) error {
	file, err := os.Create(csvPath)
	if err != nil {
		return fmt.Errorf("failed to create CSV file: %v", err)
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	defer writer.Flush()

	// Write header
	header := []string{
		"Test", "Count", "MeanNs", "P95Ns", "OpsPerSec", "Skipped",
		"Engine", "Codec", "DBName", "Store",
		"Threads", "LargeValueSizeKB", "Keys Count", "Ops",
	}
	if err := writer.Write(header); err != nil {
		return fmt.Errorf("failed to write CSV header: %v", err)
	}

	// Write test results
	for test, timer := range results {
		skipped := "false"
		if timer.Count() == 0 {
			skipped = "true"
		}

		row := []string{
			test,
			strconv.FormatInt(timer.Count(), 10),
			fmt.Sprintf("%.0f", timer.Mean()),
			fmt.Sprintf("%.0f", timer.Percentile(0.95)),
			fmt.Sprintf("%.0f", timer.RateMean()),
			skipped,
			viper.GetString("engine"),
			viper.GetString("codec"),
			viper.GetString("dbname"),
			util.GetStoreName(),
			strconv.Itoa(perfNumThreads),
			strconv.Itoa(perfLargeValueSizeKB),
			strconv.Itoa(perfKeySpread),
			strconv.Itoa(perfNumOps),
		}

		if err := writer.Write(row); err != nil {
			return fmt.Errorf("failed to write row for test %s: %v", test, err)
		}
	}

	return nil
}
