package services

import (
  "context"
  "fmt"
  "image"
  "image/color"
  "image/png"
  "os"
  "path/filepath"
  "strings"

  "github.com/fogleman/gg"
  "github.com/golang/freetype/truetype"
  "github.com/google/uuid"
  "golang.org/x/image/draw"
  "golang.org/x/image/font"

  "github.com/conservaproj/conserva-backend/internal/logger"
  "github.com/conservaproj/conserva-backend/internal/utils"
)

// ProjectImageService renders an initial-letter placeholder for projects
// created without a picture. Files land under a local media directory and are
// served statically; only the key and URL are stored on the project row.
type ProjectImageService interface {
  RenderPlaceholder(ctx context.Context, projectID uuid.UUID, name string) (key string, url string, err error)
}

type projectImageService struct {
  log      *logger.Logger
  mediaDir string
  urlBase  string
  fontFace font.Face
  palette  []color.NRGBA
}

const (
  placeholderSize  = 512
  renderOversample = 2
)

func NewProjectImageService(baseLog *logger.Logger) (ProjectImageService, error) {
  serviceLog := baseLog.With("service", "ProjectImageService")

  mediaDir := utils.GetEnv("MEDIA_DIR", "./media", serviceLog)
  if err := os.MkdirAll(mediaDir, 0o755); err != nil {
    return nil, fmt.Errorf("create media dir: %w", err)
  }
  urlBase := utils.GetEnv("MEDIA_URL_BASE", "/media", serviceLog)

  fontPath := strings.TrimSpace(os.Getenv("PLACEHOLDER_FONT"))
  if fontPath == "" {
    return nil, fmt.Errorf("Env var PLACEHOLDER_FONT is empty")
  }
  face, err := loadFontFace(fontPath, float64(placeholderSize*renderOversample)*0.42)
  if err != nil {
    return nil, fmt.Errorf("could not load placeholder font: %w", err)
  }

  return &projectImageService{
    log:      serviceLog,
    mediaDir: mediaDir,
    urlBase:  strings.TrimRight(urlBase, "/"),
    fontFace: face,
    palette: []color.NRGBA{
      {R: 0x2E, G: 0x7D, B: 0x32, A: 0xFF}, // forest
      {R: 0x00, G: 0x69, B: 0x5C, A: 0xFF}, // teal
      {R: 0x55, G: 0x6B, B: 0x2F, A: 0xFF}, // olive
      {R: 0x01, G: 0x57, B: 0x9B, A: 0xFF}, // lake
      {R: 0x6D, G: 0x4C, B: 0x41, A: 0xFF}, // soil
    },
  }, nil
}

func (s *projectImageService) RenderPlaceholder(ctx context.Context, projectID uuid.UUID, name string) (string, string, error) {
  initial := "P"
  for _, r := range strings.TrimSpace(name) {
    initial = strings.ToUpper(string(r))
    break
  }
  bg := s.palette[int(projectID[0])%len(s.palette)]

  over := placeholderSize * renderOversample
  dc := gg.NewContext(over, over)
  dc.SetColor(bg)
  dc.Clear()
  dc.SetFontFace(s.fontFace)
  dc.SetColor(color.NRGBA{R: 0xFF, G: 0xFF, B: 0xFF, A: 0xFF})
  dc.DrawStringAnchored(initial, float64(over)/2, float64(over)/2, 0.5, 0.5)

  // render big, then downscale for smooth glyph edges
  scaled := image.NewRGBA(image.Rect(0, 0, placeholderSize, placeholderSize))
  draw.CatmullRom.Scale(scaled, scaled.Bounds(), dc.Image(), dc.Image().Bounds(), draw.Over, nil)

  key := fmt.Sprintf("projects/%s.png", projectID)
  path := filepath.Join(s.mediaDir, filepath.FromSlash(key))
  if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
    return "", "", fmt.Errorf("create media subdir: %w", err)
  }
  out, err := os.Create(path)
  if err != nil {
    return "", "", fmt.Errorf("create placeholder file: %w", err)
  }
  defer out.Close()
  if err := png.Encode(out, scaled); err != nil {
    return "", "", fmt.Errorf("encode placeholder: %w", err)
  }

  s.log.Debug("Rendered project placeholder", "project_id", projectID, "path", path)
  return key, s.urlBase + "/" + key, nil
}

func loadFontFace(path string, points float64) (font.Face, error) {
  raw, err := os.ReadFile(path)
  if err != nil {
    return nil, err
  }
  parsed, err := truetype.Parse(raw)
  if err != nil {
    return nil, err
  }
  return truetype.NewFace(parsed, &truetype.Options{Size: points}), nil
}
