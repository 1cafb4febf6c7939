package metrics_test

import (
	"fmt"

	"gonum.org/v1/gonum/mat"

	"github.com/banerjixplores/climacrop/metrics"
)

// ExampleMSE demonstrates Mean Squared Error calculation
func ExampleMSE() {
	yTrue := mat.NewVecDense(4, []float64{1.0, 2.0, 3.0, 4.0})
	yPred := mat.NewVecDense(4, []float64{1.1, 1.9, 3.2, 3.8})

	mse, err := metrics.MSE(yTrue, yPred)
	if err != nil {
		fmt.Println(err)
		return
	}

	fmt.Printf("MSE: %.3f\n", mse)

	// Output: MSE: 0.025
}

// ExampleRMSE demonstrates Root Mean Squared Error calculation
func ExampleRMSE() {
	yTrue := mat.NewVecDense(3, []float64{10.0, 20.0, 30.0})
	yPred := mat.NewVecDense(3, []float64{12.0, 18.0, 32.0})

	rmse, _ := metrics.RMSE(yTrue, yPred)
	fmt.Printf("RMSE: %.2f\n", rmse)

	// Output: RMSE: 2.00
}

// ExampleR2ScoreMatrix scores regressor output directly.
func ExampleR2ScoreMatrix() {
	yTrue := mat.NewDense(4, 1, []float64{0.1, 0.4, 0.6, 0.9})
	yPred := mat.NewDense(4, 1, []float64{0.1, 0.4, 0.6, 0.9})

	r2, _ := metrics.R2ScoreMatrix(yTrue, yPred)
	fmt.Printf("R²: %.1f\n", r2)

	// Output: R²: 1.0
}

// ExamplePerClassAccuracy shows zone-wise accuracy.
func ExamplePerClassAccuracy() {
	yTrue := []string{"Low", "Low", "High", "Medium"}
	yPred := []string{"Low", "Medium", "High", "Low"}

	acc, _, _ := metrics.PerClassAccuracy(yTrue, yPred, []string{"Low", "Medium", "High"})
	fmt.Printf("Low=%.2f Medium=%.2f High=%.2f\n", acc["Low"], acc["Medium"], acc["High"])

	// Output: Low=0.50 Medium=0.00 High=1.00
}
