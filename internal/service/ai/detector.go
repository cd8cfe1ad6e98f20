package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"gocv.io/x/gocv"

	"parkingserver/internal/config"
	"parkingserver/internal/logger"
	"parkingserver/internal/model"
)

// rawDetection is one entry of the detector response.
type rawDetection struct {
	Box        []float64 `json:"box"` // x1, y1, x2, y2
	Confidence *float64  `json:"confidence"`
	Label      string    `json:"label"`
}

type detectResponse struct {
	Detections []rawDetection `json:"detections"`
}

// DetectorService sends frames to the external detector/classifier and turns
// its answer into slot detections for the registry.
type DetectorService struct {
	client              *http.Client
	url                 string
	confidenceThreshold float64
	logger              *logger.Logger

	// frameSize returns the width and height of an encoded image.
	frameSize func(image []byte) (int, int, error)
}

// NewDetectorService creates a detector client from the detector settings.
func NewDetectorService(config *config.Config, logger *logger.Logger) *DetectorService {
	return &DetectorService{
		client:              &http.Client{Timeout: config.DetectorTimeout},
		url:                 config.DetectorURL,
		confidenceThreshold: config.ConfidenceThreshold,
		logger:              logger,
		frameSize:           decodeSize,
	}
}

// DetectAndClassify returns the detections of one frame in detector order.
// Boxes are clipped to the frame; low-confidence and empty boxes are skipped.
func (s *DetectorService) DetectAndClassify(ctx context.Context, image []byte) ([]model.Detection, error) {
	width, height, err := s.frameSize(image)
	if err != nil {
		return nil, err
	}

	raw, err := s.request(ctx, image)
	if err != nil {
		return nil, err
	}

	detections := make([]model.Detection, 0, len(raw))
	for _, r := range raw {
		if len(r.Box) != 4 {
			s.logger.Debug("Skipping detection with %d box values", len(r.Box))
			continue
		}
		if r.Confidence != nil && *r.Confidence < s.confidenceThreshold {
			continue
		}

		box := model.Box{Left: r.Box[0], Top: r.Box[1], Right: r.Box[2], Bottom: r.Box[3]}.Clip(width, height)
		if box.Area() == 0 {
			continue
		}

		status, err := model.ParseStatus(r.Label)
		if err != nil {
			// Left as-is; the registry drops unknown statuses.
			status = model.Status(r.Label)
		}

		detections = append(detections, model.Detection{
			Box:        box,
			Status:     status,
			Confidence: r.Confidence,
		})
	}

	return detections, nil
}

func (s *DetectorService) request(ctx context.Context, image []byte) ([]rawDetection, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(image))
	if err != nil {
		return nil, fmt.Errorf("failed to build detector request: %w", err)
	}
	req.Header.Set("Content-Type", "image/jpeg")
	req.Header.Set("Accept", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("detector request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("detector returned %d: %s", resp.StatusCode, bytes.TrimSpace(body))
	}

	var decoded detectResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, fmt.Errorf("failed to decode detector response: %w", err)
	}
	return decoded.Detections, nil
}

func decodeSize(image []byte) (int, int, error) {
	mat, err := gocv.IMDecode(image, gocv.IMReadColor)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to decode image: %v", err)
	}
	defer mat.Close()

	if mat.Empty() {
		return 0, 0, fmt.Errorf("decoded image is empty")
	}
	return mat.Cols(), mat.Rows(), nil
}
