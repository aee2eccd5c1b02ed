package raster

import (
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"os"
	"sync"
	"testing"

	"golang.org/x/image/tiff"

	"github.com/n1tecki/SAR-Sentinel1-Maritime-Surveillance/internal/maskerr"
)

// memStore is an in-memory ObjectReader that counts reads.
type memStore struct {
	mu      sync.Mutex
	objects map[string][]byte
	reads   map[string]int
}

func newMemStore() *memStore {
	return &memStore{objects: map[string][]byte{}, reads: map[string]int{}}
}

func (s *memStore) ReadObject(_ context.Context, uri string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reads[uri]++
	data, ok := s.objects[uri]
	if !ok {
		return nil, fmt.Errorf("%s: %w", uri, os.ErrNotExist)
	}
	return data, nil
}

func (s *memStore) IsNotFoundError(err error) bool { return errors.Is(err, os.ErrNotExist) }

func (s *memStore) readCount(uri string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reads[uri]
}

// plainTIFF encodes an image without any GeoTIFF tags.
func plainTIFF(t *testing.T, img image.Image) []byte {
	t.Helper()
	f, err := os.CreateTemp(t.TempDir(), "plain-*.tif")
	if err != nil {
		t.Fatalf("failed to create temp file: %v", err)
	}
	defer f.Close()
	if err := tiff.Encode(f, img, nil); err != nil {
		t.Fatalf("failed to encode tiff: %v", err)
	}
	data, err := os.ReadFile(f.Name())
	if err != nil {
		t.Fatalf("failed to read tiff: %v", err)
	}
	return data
}

func TestLoad_GeoTIFF(t *testing.T) {
	store := newMemStore()
	r := createTestRaster(t, 6, 4, 3, 8)
	store.objects["chip.tif"] = encodeRaster(t, r)

	got, err := Load(context.Background(), store, "chip.tif")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if got.Width != 6 || got.Height != 4 || got.Channels != 3 {
		t.Errorf("shape: got %dx%dx%d", got.Width, got.Height, got.Channels)
	}
	if !affineClose(got.Transform, northUp) {
		t.Errorf("transform: got %+v, want %+v", got.Transform, northUp)
	}
}

func TestLoad_DropsAlpha(t *testing.T) {
	img := image.NewNRGBA(image.Rect(0, 0, 2, 2))
	for y := 0; y < 2; y++ {
		for x := 0; x < 2; x++ {
			img.SetNRGBA(x, y, color.NRGBA{R: 10, G: 20, B: 30, A: 255})
		}
	}
	store := newMemStore()
	store.objects["rgba.tif"] = plainTIFF(t, img)
	store.objects["rgba.tfw"] = []byte("1 0 0 -1 0.5 1.5")

	got, err := Load(context.Background(), store, "rgba.tif")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if got.Channels != MaxBands {
		t.Errorf("channels: got %d, want %d", got.Channels, MaxBands)
	}
	if got.At(0, 0, 0) != 10 || got.At(1, 0, 0) != 20 || got.At(2, 0, 0) != 30 {
		t.Errorf("samples: got %d,%d,%d", got.At(0, 0, 0), got.At(1, 0, 0), got.At(2, 0, 0))
	}
}

func TestLoad_WorldFileFallback(t *testing.T) {
	store := newMemStore()
	store.objects["scene/chip.tif"] = plainTIFF(t, image.NewGray(image.Rect(0, 0, 3, 3)))
	store.objects["scene/chip.wld"] = []byte("2\n0\n0\n-2\n11\n49\n")

	got, err := Load(context.Background(), store, "scene/chip.tif")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	want := Affine{A: 2, C: 10, E: -2, F: 50}
	if !affineClose(got.Transform, want) {
		t.Errorf("transform: got %+v, want %+v", got.Transform, want)
	}
}

func TestLoad_Errors(t *testing.T) {
	store := newMemStore()
	store.objects["corrupt.tif"] = []byte("not a tiff at all")
	store.objects["nogeo.tif"] = plainTIFF(t, image.NewGray(image.Rect(0, 0, 2, 2)))
	store.objects["badwf.tif"] = plainTIFF(t, image.NewGray(image.Rect(0, 0, 2, 2)))
	store.objects["badwf.tfw"] = []byte("garbage")

	for _, uri := range []string{"missing.tif", "corrupt.tif", "nogeo.tif", "badwf.tif"} {
		t.Run(uri, func(t *testing.T) {
			_, err := Load(context.Background(), store, uri)
			if !errors.Is(err, maskerr.ErrInputLoad) {
				t.Fatalf("got %v, want InputLoadError", err)
			}
			var lerr *maskerr.InputLoadError
			if !errors.As(err, &lerr) || lerr.Path == "" {
				t.Errorf("InputLoadError should carry the path: %v", err)
			}
		})
	}
}

// denyingStore fails reads of one URI with a permission error.
type denyingStore struct {
	*memStore
	deny string
}

func (s *denyingStore) ReadObject(ctx context.Context, uri string) ([]byte, error) {
	if uri == s.deny {
		return nil, fmt.Errorf("%s: %w", uri, os.ErrPermission)
	}
	return s.memStore.ReadObject(ctx, uri)
}

func TestLoad_WorldFileReadError(t *testing.T) {
	mem := newMemStore()
	mem.objects["chip.tif"] = plainTIFF(t, image.NewGray(image.Rect(0, 0, 2, 2)))
	mem.objects["chip.wld"] = []byte("1\n0\n0\n-1\n0.5\n1.5\n")
	store := &denyingStore{memStore: mem, deny: "chip.tfw"}

	_, err := Load(context.Background(), store, "chip.tif")
	if !errors.Is(err, os.ErrPermission) {
		t.Fatalf("got %v, want the sidecar read error", err)
	}
	var lerr *maskerr.InputLoadError
	if !errors.As(err, &lerr) || lerr.Path != "chip.tfw" {
		t.Errorf("InputLoadError should name the sidecar: %v", err)
	}
	if mem.readCount("chip.wld") != 0 {
		t.Error("lookup should stop at the failed sidecar")
	}
}

func TestRasterCache_LoadsOnce(t *testing.T) {
	store := newMemStore()
	store.objects["chip.tif"] = encodeRaster(t, createTestRaster(t, 4, 4, 1, 16))
	cache := NewRasterCache(store)

	a, err := cache.Load(context.Background(), "chip.tif")
	if err != nil {
		t.Fatal(err)
	}
	b, err := cache.LoadRaster(context.Background(), "chip.tif")
	if err != nil {
		t.Fatal(err)
	}
	if a != b {
		t.Error("second load should return the cached raster")
	}
	if n := store.readCount("chip.tif"); n != 1 {
		t.Errorf("reads: got %d, want 1", n)
	}

	cache.Evict("chip.tif")
	if _, err := cache.Load(context.Background(), "chip.tif"); err != nil {
		t.Fatal(err)
	}
	if n := store.readCount("chip.tif"); n != 2 {
		t.Errorf("reads after Evict: got %d, want 2", n)
	}

	cache.Clear()
	if _, err := cache.Load(context.Background(), "chip.tif"); err != nil {
		t.Fatal(err)
	}
	if n := store.readCount("chip.tif"); n != 3 {
		t.Errorf("reads after Clear: got %d, want 3", n)
	}
}

func TestRasterCache_Concurrent(t *testing.T) {
	store := newMemStore()
	store.objects["chip.tif"] = encodeRaster(t, createTestRaster(t, 8, 8, 3, 8))
	cache := NewRasterCache(store)

	var wg sync.WaitGroup
	errs := make(chan error, 16)
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := cache.Load(context.Background(), "chip.tif"); err != nil {
				errs <- err
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Errorf("concurrent load failed: %v", err)
	}
}

func TestLoadRasterInfo(t *testing.T) {
	store := newMemStore()
	data := encodeRaster(t, createTestRaster(t, 10, 10, 1, 16))
	store.objects["chip.tif"] = data

	info, err := LoadRasterInfo(context.Background(), NewRasterCache(store), "chip.tif")
	if err != nil {
		t.Fatalf("LoadRasterInfo failed: %v", err)
	}
	if info.Width != 10 || info.Height != 10 || info.Bands != 1 {
		t.Errorf("shape: got %+v", info)
	}
	if info.ColorDepth != "16-bit" {
		t.Errorf("ColorDepth: got %s, want 16-bit", info.ColorDepth)
	}
	if info.Bound != [4]float64{0, 0, 10, 10} {
		t.Errorf("Bound: got %v, want [0 0 10 10]", info.Bound)
	}
	if info.Transform != [6]float64{0, 1, 0, 10, 0, -1} {
		t.Errorf("Transform: got %v", info.Transform)
	}
	if info.FileSizeBytes != int64(len(data)) {
		t.Errorf("FileSizeBytes: got %d, want %d", info.FileSizeBytes, len(data))
	}
}
