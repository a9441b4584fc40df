package mlmodel

// SGD is a stochastic gradient descent optimizer with a fixed learning rate.
type SGD struct{ LearningRate float64 }

func NewSGD(learningRate float64) *SGD { return &SGD{LearningRate: learningRate} }

// Step updates the weights in place.
func (o *SGD) Step(weights, grads []float64) {
	for i := range weights {
		weights[i] -= o.LearningRate * grads[i]
	}
}
