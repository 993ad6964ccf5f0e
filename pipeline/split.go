package pipeline

import (
	"fmt"
	"math"
	"math/rand"
)

// Split shuffles the dataset with the given seed and returns floor(trainRatio*n) rows
// for training and the rest as the held-out partition. The same seed always yields
// the same partition.
func Split(d Dataset, trainRatio float64, seed int64) (train, heldOut Dataset, err error) {
	if math.IsNaN(trainRatio) || trainRatio <= 0 || trainRatio >= 1 {
		return nil, nil, fmt.Errorf("%w: %v", ErrInvalidRatio, trainRatio)
	}
	if len(d) < MinRows {
		return nil, nil, fmt.Errorf("%w: got %d", ErrTooFewRows, len(d))
	}

	nTrain := int(math.Floor(trainRatio * float64(len(d))))
	if nTrain == 0 {
		return nil, nil, fmt.Errorf("%w: ratio %v of %d rows", ErrEmptyTrainingSet, trainRatio, len(d))
	}

	rnd := rand.New(rand.NewSource(seed))
	indices := rnd.Perm(len(d))

	train = make(Dataset, 0, nTrain)
	heldOut = make(Dataset, 0, len(d)-nTrain)
	for i, idx := range indices {
		if i < nTrain {
			train = append(train, d[idx])
		} else {
			heldOut = append(heldOut, d[idx])
		}
	}
	return train, heldOut, nil
}
