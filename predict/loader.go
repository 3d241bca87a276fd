package predict

import (
	"errors"
	"fmt"
	"time"

	"winequality/bundle"
	"winequality/ml"
	"winequality/wine"
)

// LocalLoader loads a saved artifact from path. The model id is the file's SHA-256.
func LocalLoader(modelType, path string) Loader {
	return func() (ml.ModelProvider, string, error) {
		model, err := ml.LoadModel(modelType, path)
		if err != nil {
			return nil, "", fmt.Errorf("load model %s: %w", path, err)
		}
		sum, err := bundle.Checksum(path)
		if err != nil {
			return nil, "", err
		}
		return ml.Local(model), sum, nil
	}
}

// RemoteLoader serves predictions from an inference endpoint.
func RemoteLoader(url string, timeout time.Duration) Loader {
	return func() (ml.ModelProvider, string, error) {
		if url == "" {
			return nil, "", errors.New("remote model url is empty")
		}
		return ml.NewRemoteModel(url, wine.Columns(), timeout), "remote:" + url, nil
	}
}
