package main

import (
	"fmt"
	"math/rand"
	"os"
	"sync"

	"github.com/launchdarkly/go-jsonstream/v3/jwriter"
	"github.com/spf13/cobra"

	"github.com/joshuapare/spacekit/space"
	"github.com/joshuapare/spacekit/space/reserve"
)

var (
	runWorkers    int
	runRounds     int
	runGrowths    int
	runPrefixBits uint
	runSeed       int64
)

func init() {
	rootCmd.AddCommand(newRunCmd())
}

func newRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run concurrent classification workers against a growing heap",
		Long: `The run command builds a real map over the platform geometry, then races
classification workers against a reservation thread. Workers classify
random words; the grower keeps reserving fresh ranges. The final map
statistics are printed when every worker is done.

The default prefix size of 20 keeps the state table small and the OS
reservations made by the grower cheap while still exercising the whole
pipeline.

Example:
  spacestress run --workers 8 --rounds 100000
  spacestress run --growths 32 --json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStress()
		},
	}
	cmd.Flags().IntVar(&runWorkers, "workers", 8, "Concurrent classification workers")
	cmd.Flags().IntVar(&runRounds, "rounds", 100000, "Classifications per worker")
	cmd.Flags().IntVar(&runGrowths, "growths", 16, "Heap growth requests to issue")
	cmd.Flags().UintVar(&runPrefixBits, "prefix-bits", 20, "Prefix bits N")
	cmd.Flags().Int64Var(&runSeed, "seed", 1, "Seed for the word generator")
	return cmd
}

func runStress() error {
	geo, err := space.NewGeometry(space.Config{PrefixBits: runPrefixBits})
	if err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	m := space.NewMap(geo)
	mgr := reserve.NewManager(m, reserve.OS(), reserve.DefaultPolicy(geo), newLogger())

	var ranges []reserve.ReservedRange
	var rangesMu sync.Mutex

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < runGrowths; i++ {
			r, err := mgr.Reserve(geo.SpaceSize(), 0)
			if err != nil {
				fmt.Fprintf(os.Stderr, "growth %d failed: %v\n", i, err)
				return
			}
			rangesMu.Lock()
			ranges = append(ranges, r)
			rangesMu.Unlock()
		}
	}()

	inHeap := make([]int, runWorkers)
	for w := 0; w < runWorkers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			rng := rand.New(rand.NewSource(runSeed + int64(w)))
			cl := space.NewClassifier(m)
			for i := 0; i < runRounds; i++ {
				word := randomWord(rng, geo, &rangesMu, &ranges)
				if cl.Classify(word) == space.InHeap {
					inHeap[w]++
				}
			}
		}(w)
	}
	wg.Wait()

	total := 0
	for _, n := range inHeap {
		total += n
	}

	if jsonOut {
		w := jwriter.NewWriter()
		m.Stats().BuildStatsString(&w)
		if err := w.Error(); err != nil {
			return err
		}
		fmt.Println(string(w.Bytes()))
		return nil
	}

	st := m.Stats()
	fmt.Printf("Workers:            %d x %d classifications\n", runWorkers, runRounds)
	fmt.Printf("In-heap verdicts:   %d\n", total)
	fmt.Printf("Reserved spaces:    %d (%d reservations)\n", st.ReservedSpaces, st.Reservations)
	fmt.Printf("Tainted spaces:     %d\n", st.TaintedSpaces)
	fmt.Printf("Conflicts:          %d\n", st.Conflicts)
	fmt.Printf("Taint races lost:   %d\n", st.TaintRacesLost)
	return nil
}

// randomWord produces mostly words inside already-reserved ranges, with an
// occasional wild pointer, so both verdicts stay exercised.
func randomWord(rng *rand.Rand, geo space.Geometry, mu *sync.Mutex, ranges *[]reserve.ReservedRange) uintptr {
	if rng.Intn(4) == 0 {
		// Wild pointer somewhere in the tracked range.
		id := space.SpaceID(rng.Intn(geo.NumSpaces()))
		return geo.BaseOf(id) + uintptr(rng.Intn(int(geo.SpaceSize())))
	}
	mu.Lock()
	defer mu.Unlock()
	if len(*ranges) == 0 {
		return geo.BaseOf(space.SpaceID(rng.Intn(geo.NumSpaces())))
	}
	r := (*ranges)[rng.Intn(len(*ranges))]
	return r.Base + uintptr(rng.Intn(int(r.Size)))
}
