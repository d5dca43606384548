package lookup

import (
	"context"
	"sort"
	"sync"
	"testing"
	"time"
)

// ContractTest defines a standard test suite that all strategies must pass
type ContractTest struct {
	// Secrets is the content of the backing store. Keys must be valid
	// secret identifiers.
	Secrets map[string]string

	// CreateStrategy returns a strategy reading from a store that holds
	// exactly Secrets.
	CreateStrategy func(t *testing.T, secrets map[string]string) Strategy
}

// RunContractTests runs the standard strategy contract test suite
func RunContractTests(t *testing.T, contract ContractTest) {
	if len(contract.Secrets) == 0 {
		t.Fatal("ContractTest.Secrets must not be empty")
	}

	t.Run("Contract", func(t *testing.T) {
		t.Run("PropertyNames", func(t *testing.T) {
			testPropertyNames(t, contract)
		})

		t.Run("Properties", func(t *testing.T) {
			testProperties(t, contract)
		})

		t.Run("PropertiesIsolation", func(t *testing.T) {
			testPropertiesIsolation(t, contract)
		})

		t.Run("Value", func(t *testing.T) {
			testValue(t, contract)
		})

		t.Run("ValueNotFound", func(t *testing.T) {
			testValueNotFound(t, contract)
		})

		t.Run("ValueEmptyName", func(t *testing.T) {
			testValueEmptyName(t, contract)
		})

		t.Run("ConcurrentReads", func(t *testing.T) {
			testConcurrentReads(t, contract)
		})
	})
}

func testPropertyNames(t *testing.T, contract ContractTest) {
	s := contract.CreateStrategy(t, contract.Secrets)

	names, err := s.PropertyNames(context.Background())
	if err != nil {
		t.Fatalf("Strategy.PropertyNames() failed: %v", err)
	}

	want := make([]string, 0, len(contract.Secrets))
	for k := range contract.Secrets {
		want = append(want, k)
	}
	sort.Strings(want)

	if len(names) != len(want) {
		t.Fatalf("Strategy.PropertyNames() = %v, want %v", names, want)
	}
	for i := range want {
		if names[i] != want[i] {
			t.Fatalf("Strategy.PropertyNames() = %v, want %v", names, want)
		}
	}
}

func testProperties(t *testing.T, contract ContractTest) {
	s := contract.CreateStrategy(t, contract.Secrets)

	props, err := s.Properties(context.Background())
	if err != nil {
		t.Fatalf("Strategy.Properties() failed: %v", err)
	}
	if len(props) != len(contract.Secrets) {
		t.Fatalf("Strategy.Properties() returned %d entries, want %d", len(props), len(contract.Secrets))
	}
	for k, v := range contract.Secrets {
		if props[k] != v {
			t.Errorf("Strategy.Properties()[%q] = %q, want %q", k, props[k], v)
		}
	}
}

func testPropertiesIsolation(t *testing.T, contract ContractTest) {
	s := contract.CreateStrategy(t, contract.Secrets)
	ctx := context.Background()

	props, err := s.Properties(ctx)
	if err != nil {
		t.Fatalf("Strategy.Properties() failed: %v", err)
	}
	for k := range props {
		props[k] = "mutated"
	}
	props["injected-by-caller"] = "x"

	again, err := s.Properties(ctx)
	if err != nil {
		t.Fatalf("Strategy.Properties() failed: %v", err)
	}
	if _, ok := again["injected-by-caller"]; ok {
		t.Error("Strategy.Properties() exposed caller mutation")
	}
	for k, v := range contract.Secrets {
		if again[k] != v {
			t.Errorf("Strategy.Properties()[%q] = %q after caller mutation, want %q", k, again[k], v)
		}
	}
}

func testValue(t *testing.T, contract ContractTest) {
	s := contract.CreateStrategy(t, contract.Secrets)
	ctx := context.Background()

	for k, v := range contract.Secrets {
		res, err := s.Value(ctx, k)
		if err != nil {
			t.Fatalf("Strategy.Value(%q) failed: %v", k, err)
		}
		got, ok := res.Get()
		if !ok {
			t.Errorf("Strategy.Value(%q) outcome = %v, want found", k, res.Outcome)
			continue
		}
		if got != v {
			t.Errorf("Strategy.Value(%q) = %q, want %q", k, got, v)
		}
		if res.Key != k {
			t.Errorf("Strategy.Value(%q).Key = %q, want %q", k, res.Key, k)
		}
	}
}

func testValueNotFound(t *testing.T, contract ContractTest) {
	s := contract.CreateStrategy(t, contract.Secrets)

	key := "definitely-missing-" + time.Now().Format("20060102150405")
	res, err := s.Value(context.Background(), key)
	if err != nil {
		t.Fatalf("Strategy.Value(%q) failed: %v", key, err)
	}
	if v, ok := res.Get(); ok {
		t.Errorf("Strategy.Value(%q) = %q, want absent", key, v)
	}
}

func testValueEmptyName(t *testing.T, contract ContractTest) {
	s := contract.CreateStrategy(t, contract.Secrets)

	res, err := s.Value(context.Background(), "")
	if err != nil {
		t.Fatalf("Strategy.Value(\"\") failed: %v", err)
	}
	if res.Outcome != NotFound {
		t.Errorf("Strategy.Value(\"\") outcome = %v, want %v", res.Outcome, NotFound)
	}
}

func testConcurrentReads(t *testing.T, contract ContractTest) {
	s := contract.CreateStrategy(t, contract.Secrets)
	ctx := context.Background()

	keys := make([]string, 0, len(contract.Secrets))
	for k := range contract.Secrets {
		keys = append(keys, k)
	}

	const workers = 32
	var wg sync.WaitGroup
	errs := make(chan error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if _, err := s.Value(ctx, keys[i%len(keys)]); err != nil {
				errs <- err
			}
			if _, err := s.PropertyNames(ctx); err != nil {
				errs <- err
			}
		}(i)
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(10 * time.Second):
		t.Fatal("concurrent reads did not finish within 10 seconds")
	}

	close(errs)
	for err := range errs {
		t.Errorf("concurrent read failed: %v", err)
	}
}
