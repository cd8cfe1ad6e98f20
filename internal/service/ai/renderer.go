package ai

import (
	"fmt"
	"image"
	"image/color"

	"gocv.io/x/gocv"

	"parkingserver/internal/dto"
	"parkingserver/internal/logger"
	"parkingserver/internal/model"
)

var (
	freeColor     = color.RGBA{R: 0, G: 255, B: 0, A: 0}
	occupiedColor = color.RGBA{R: 255, G: 0, B: 0, A: 0}
	panelColor    = color.RGBA{R: 0, G: 0, B: 0, A: 0}
	textColor     = color.RGBA{R: 255, G: 255, B: 255, A: 0}
)

// Renderer draws slot overlays on camera frames.
type Renderer struct {
	logger *logger.Logger
}

func NewRenderer(logger *logger.Logger) *Renderer {
	return &Renderer{logger: logger}
}

// DrawSlots outlines every slot of snap on img, labels it with its number and
// status, adds a counts panel and returns a re-encoded JPEG buffer.
func (r *Renderer) DrawSlots(img []byte, snap dto.StatusSnapshot) ([]byte, error) {
	mat, err := gocv.IMDecode(img, gocv.IMReadColor)
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %v", err)
	}
	defer mat.Close()

	if mat.Empty() {
		return nil, fmt.Errorf("decoded image is empty")
	}

	for _, slot := range snap.Slots {
		c := freeColor
		if slot.Status == model.StatusOccupied {
			c = occupiedColor
		}

		rect := image.Rect(int(slot.Box.Left), int(slot.Box.Top), int(slot.Box.Right), int(slot.Box.Bottom))
		if err := gocv.Rectangle(&mat, rect, c, 2); err != nil {
			return nil, fmt.Errorf("failed to draw rectangle: %v", err)
		}

		label := fmt.Sprintf("Slot %d (%s)", slot.Number, slot.Status)
		pt := image.Pt(rect.Min.X, rect.Min.Y-5)
		if err := gocv.PutText(&mat, label, pt, gocv.FontHersheySimplex, 0.5, c, 1); err != nil {
			return nil, fmt.Errorf("failed to draw text: %v", err)
		}
	}

	if err := drawPanel(&mat, snap); err != nil {
		return nil, err
	}

	buf, err := gocv.IMEncode(".jpg", mat)
	if err != nil {
		r.logger.Error("Failed to encode image: %v", err)
		return nil, err
	}
	defer buf.Close()
	finalImage := make([]byte, len(buf.GetBytes()))
	copy(finalImage, buf.GetBytes())

	return finalImage, nil
}

// drawPanel writes the total/free/occupied counts in the top-left corner.
func drawPanel(mat *gocv.Mat, snap dto.StatusSnapshot) error {
	if err := gocv.Rectangle(mat, image.Rect(10, 10, 230, 100), panelColor, -1); err != nil {
		return fmt.Errorf("failed to draw panel: %v", err)
	}

	lines := []string{
		fmt.Sprintf("Total: %d", snap.TotalCount),
		fmt.Sprintf("Free: %d", snap.FreeCount),
		fmt.Sprintf("Occupied: %d", snap.OccupiedCount),
	}
	for i, line := range lines {
		pt := image.Pt(20, 35+i*25)
		if err := gocv.PutText(mat, line, pt, gocv.FontHersheySimplex, 0.6, textColor, 2); err != nil {
			return fmt.Errorf("failed to draw text: %v", err)
		}
	}
	return nil
}
