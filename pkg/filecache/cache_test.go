package filecache

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"furnacewear/internal/models"
	"furnacewear/pkg/ingest"
)

func scanBlob(name string, thickness ...float64) ingest.Blob {
	content := "x,y,z,thickness\n"
	for i, th := range thickness {
		content += fmt.Sprintf("%d,1,1,%g\n", i, th)
	}
	return ingest.Blob{Name: name, Content: content}
}

func TestEmptySnapshot(t *testing.T) {
	c := New(Options{})
	snap := c.Snapshot()
	require.NotNil(t, snap)
	assert.Equal(t, 0, snap.Len())
	assert.Empty(t, snap.Names())
	assert.False(t, snap.GlobalRange().Initialized)

	_, ok := snap.Get("missing.csv")
	assert.False(t, ok)
}

func TestIngestReportsFailuresAndContinues(t *testing.T) {
	c := New(Options{Workers: 2})
	batch := []ingest.Blob{
		scanBlob("b.csv", 30, 40),
		{Name: "empty.csv", Content: "  "},
		scanBlob("a.csv", 10, 25),
		{Name: "schema.csv", Content: "a,b,c\n1,2,3\n"},
	}

	report, err := c.Ingest(context.Background(), batch)
	require.NoError(t, err)
	assert.Equal(t, []string{"b.csv", "a.csv"}, report.Loaded)
	require.Len(t, report.Failures, 2)
	assert.Equal(t, "empty.csv", report.Failures[0].Name)
	assert.ErrorIs(t, report.Failures[0], ingest.ErrEmptyInput)
	assert.ErrorIs(t, report.Failures[1], ingest.ErrSchema)

	snap := c.Snapshot()
	assert.Equal(t, []string{"a.csv", "b.csv"}, snap.Names())
	gr := snap.GlobalRange()
	assert.True(t, gr.Initialized)
	assert.Equal(t, 10.0, gr.Min)
	assert.Equal(t, 40.0, gr.Max)

	f, ok := snap.Get("a.csv")
	require.True(t, ok)
	assert.Len(t, f.Points, 2)
	assert.False(t, f.ParsedAt.IsZero())
}

func TestIngestClearsPreviousFiles(t *testing.T) {
	c := New(Options{})
	_, err := c.Ingest(context.Background(), []ingest.Blob{scanBlob("old.csv", 1)})
	require.NoError(t, err)
	_, err = c.Ingest(context.Background(), []ingest.Blob{scanBlob("new.csv", 2)})
	require.NoError(t, err)
	assert.Equal(t, []string{"new.csv"}, c.Snapshot().Names())
}

func TestIngestCancelledKeepsSnapshot(t *testing.T) {
	c := New(Options{})
	_, err := c.Ingest(context.Background(), []ingest.Blob{scanBlob("keep.csv", 1)})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = c.Ingest(ctx, []ingest.Blob{scanBlob("other.csv", 1)})
	assert.True(t, errors.Is(err, context.Canceled))
	assert.Equal(t, []string{"keep.csv"}, c.Snapshot().Names())
}

func TestPutIsCopyOnWrite(t *testing.T) {
	c := New(Options{})
	before := c.Snapshot()

	c.Put(&models.ParsedFile{Name: "x.csv", MinThickness: 5, MaxThickness: 9})
	after := c.Snapshot()

	assert.Equal(t, 0, before.Len())
	assert.Equal(t, []string{"x.csv"}, after.Names())

	c.Put(&models.ParsedFile{Name: "x.csv", MinThickness: 1, MaxThickness: 2})
	f, _ := c.Snapshot().Get("x.csv")
	assert.Equal(t, 1.0, f.MinThickness)
	old, _ := after.Get("x.csv")
	assert.Equal(t, 5.0, old.MinThickness)

	assert.True(t, c.Remove("x.csv"))
	assert.False(t, c.Remove("x.csv"))
	assert.Equal(t, 0, c.Snapshot().Len())
}

func TestConcurrentReadersSeeWholeSnapshots(t *testing.T) {
	c := New(Options{Workers: 4})
	var wg sync.WaitGroup
	stop := make(chan struct{})

	for r := 0; r < 4; r++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-stop:
					return
				default:
				}
				snap := c.Snapshot()
				for _, name := range snap.Names() {
					if _, ok := snap.Get(name); !ok {
						t.Errorf("name %s listed but missing", name)
						return
					}
				}
			}
		}()
	}

	for i := 0; i < 20; i++ {
		_, err := c.Ingest(context.Background(), []ingest.Blob{
			scanBlob(fmt.Sprintf("s%d-a.csv", i), 1, 2),
			scanBlob(fmt.Sprintf("s%d-b.csv", i), 3),
		})
		require.NoError(t, err)
	}
	close(stop)
	wg.Wait()
	assert.Equal(t, 2, c.Snapshot().Len())
}

func TestParseStampsFurnace(t *testing.T) {
	c := New(Options{Parse: ingest.Options{FurnaceID: "plant-default"}})
	f, err := c.Parse(scanBlob("u.csv", 3), "f-7")
	require.NoError(t, err)
	assert.Equal(t, "f-7", f.Points[0].FurnaceID)

	f, err = c.Parse(scanBlob("v.csv", 3), "")
	require.NoError(t, err)
	assert.Equal(t, "plant-default", f.Points[0].FurnaceID)
}
