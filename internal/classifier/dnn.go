package classifier

import (
	"fmt"
	"image"
	"log/slog"
	"sync"

	"gocv.io/x/gocv"
)

// DefaultInputSize is the square input edge used when the model does not
// say otherwise.
const DefaultInputSize = 224

// DNNClassifier runs an exported image model (ONNX, TensorFlow or Caffe) in
// process through the OpenCV DNN module. Input is RGB scaled to [0,1].
type DNNClassifier struct {
	path   string
	size   image.Point
	mu     sync.Mutex
	net    gocv.Net
	closed bool
}

// NewDNNClassifier loads the model at path once.
func NewDNNClassifier(path string, inputSize int) (*DNNClassifier, error) {
	if inputSize <= 0 {
		inputSize = DefaultInputSize
	}

	net := gocv.ReadNet(path, "")
	if net.Empty() {
		net.Close()
		return nil, fmt.Errorf("load model %s: empty network", path)
	}

	slog.Info("classifier model loaded", "path", path, "input_size", inputSize)

	return &DNNClassifier{
		path: path,
		size: image.Pt(inputSize, inputSize),
		net:  net,
	}, nil
}

// Predict scores one frame.
func (c *DNNClassifier) Predict(frame *gocv.Mat) (Prediction, error) {
	if frame == nil || frame.Empty() {
		return Prediction{}, fmt.Errorf("predict: empty frame")
	}

	// Frames are BGR; swapRB gives the RGB order the model was trained on.
	blob := gocv.BlobFromImage(*frame, 1.0/255.0, c.size, gocv.NewScalar(0, 0, 0, 0), true, false)
	defer blob.Close()

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return Prediction{}, fmt.Errorf("predict: classifier closed")
	}

	c.net.SetInput(blob, "")
	out := c.net.Forward("")
	defer out.Close()

	raw, err := out.DataPtrFloat32()
	if err != nil {
		return Prediction{}, fmt.Errorf("read model output: %w", err)
	}

	values := make([]float64, len(raw))
	for i, v := range raw {
		values[i] = float64(v)
	}

	return FromSlice(values)
}

// Close releases the network.
func (c *DNNClassifier) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil
	}
	c.closed = true
	return c.net.Close()
}
