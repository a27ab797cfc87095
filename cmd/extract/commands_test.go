package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/maltedev/product-extractor/internal/archive"
	"github.com/maltedev/product-extractor/internal/extractor"
	"github.com/maltedev/product-extractor/internal/models"
)

type MockPipeline struct {
	mock.Mock
}

func (m *MockPipeline) ExtractProduct(ctx context.Context, url string) (*models.CanonicalProduct, error) {
	args := m.Called(ctx, url)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.CanonicalProduct), args.Error(1)
}

func (m *MockPipeline) ScrapeImages(ctx context.Context, url string) ([]models.ExtractedImage, error) {
	args := m.Called(ctx, url)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.ExtractedImage), args.Error(1)
}

func (m *MockPipeline) BuildArchive(ctx context.Context, images []models.ExtractedImage) (*archive.Result, error) {
	args := m.Called(ctx, images)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*archive.Result), args.Error(1)
}

func execute(t *testing.T, p Pipeline, args ...string) (string, bool, error) {
	t.Helper()

	released := false
	root := newRootCmd(func(context.Context, bool) (Pipeline, func(), error) {
		return p, func() { released = true }, nil
	})

	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)

	err := root.ExecuteContext(context.Background())
	return out.String(), released, err
}

func TestProductCommand(t *testing.T) {
	p := new(MockPipeline)
	p.On("ExtractProduct", mock.Anything, "https://www.amazon.de/dp/B000000001").Return(&models.CanonicalProduct{
		Marketplace: "amazon",
		Title:       "Desk Lamp",
		Price:       models.Price{Current: 25, Currency: "EUR"},
	}, nil)

	out, released, err := execute(t, p, "product", "https://www.amazon.de/dp/B000000001")
	require.NoError(t, err)
	assert.True(t, released)

	var got models.CanonicalProduct
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	assert.Equal(t, "Desk Lamp", got.Title)

	p.AssertExpectations(t)
}

func TestProductCommand_Errors(t *testing.T) {
	t.Run("service error", func(t *testing.T) {
		p := new(MockPipeline)
		p.On("ExtractProduct", mock.Anything, mock.Anything).Return(nil, extractor.ErrInvalidURL)

		_, released, err := execute(t, p, "product", "ftp://example.com")
		assert.ErrorIs(t, err, extractor.ErrInvalidURL)
		assert.True(t, released)
	})

	t.Run("missing argument", func(t *testing.T) {
		p := new(MockPipeline)
		_, released, err := execute(t, p, "product")
		assert.Error(t, err)
		assert.False(t, released)
	})
}

func TestImagesCommand(t *testing.T) {
	p := new(MockPipeline)
	images := []models.ExtractedImage{{URL: "https://shop.example.com/a.jpg", Filename: "image-1.jpg"}}
	p.On("ScrapeImages", mock.Anything, "https://shop.example.com/p/1").Return(images, nil)

	out, _, err := execute(t, p, "images", "https://shop.example.com/p/1")
	require.NoError(t, err)

	var got []models.ExtractedImage
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	assert.Equal(t, images, got)
}

func TestArchiveCommand(t *testing.T) {
	images := []models.ExtractedImage{
		{URL: "https://cdn.example.com/a.jpg", Filename: "image-1.jpg"},
		{URL: "https://cdn.example.com/b.jpg", Filename: "image-2.jpg"},
	}
	output := filepath.Join(t.TempDir(), "lamp.zip")

	p := new(MockPipeline)
	p.On("ScrapeImages", mock.Anything, "https://shop.example.com/p/1").Return(images, nil)
	p.On("BuildArchive", mock.Anything, images[:1]).Return(&archive.Result{
		Data:      []byte("PK-zip-bytes"),
		Folder:    "product-images",
		Filenames: []string{"image-1.jpg"},
	}, nil)

	out, _, err := execute(t, p, "archive", "https://shop.example.com/p/1", "-o", output, "--limit", "1")
	require.NoError(t, err)
	assert.Equal(t, "wrote "+output+": 1 files, 0 failed\n", out)

	data, err := os.ReadFile(output)
	require.NoError(t, err)
	assert.Equal(t, []byte("PK-zip-bytes"), data)

	p.AssertExpectations(t)
}

func TestArchiveCommand_NegativeLimit(t *testing.T) {
	p := new(MockPipeline)
	_, released, err := execute(t, p, "archive", "https://shop.example.com/p/1", "--limit", "-2")
	assert.ErrorContains(t, err, "--limit cannot be negative")
	assert.False(t, released)
}
