package preprocessing_test

import (
	"fmt"

	"gonum.org/v1/gonum/mat"

	"github.com/banerjixplores/climacrop/preprocessing"
)

// ExampleStandardScaler demonstrates basic usage of StandardScaler
func ExampleStandardScaler() {
	X := mat.NewDense(4, 2, []float64{
		1.0, 2.0,
		3.0, 4.0,
		5.0, 6.0,
		7.0, 8.0,
	})

	scaler := preprocessing.NewStandardScaler(true, true)
	scaled, err := scaler.FitTransform(X)
	if err != nil {
		return
	}

	fmt.Printf("Scaled first row: [%.2f, %.2f]\n", scaled.At(0, 0), scaled.At(0, 1))

	// Output: Scaled first row: [-1.34, -1.34]
}

// ExampleOneHotEncoder shows unknown categories encoding to zeros.
func ExampleOneHotEncoder() {
	encoder := preprocessing.NewOneHotEncoder()
	_ = encoder.Fit([][]string{{"Agricultural"}, {"Wild"}})

	out, _ := encoder.Transform([][]string{{"Wild"}, {"Urban"}})
	fmt.Println(encoder.GetFeatureNamesOut([]string{"system_type"}))
	fmt.Println(mat.Formatted(out))

	// Output: [system_type_Agricultural system_type_Wild]
	// ⎡0  1⎤
	// ⎣0  0⎦
}

// ExampleSplineTransformer shows the per-feature output width.
func ExampleSplineTransformer() {
	X := mat.NewDense(4, 1, []float64{10, 15, 20, 25})
	spline := preprocessing.NewSplineTransformer(7, 3)
	out, _ := spline.FitTransform(X)

	_, c := out.Dims()
	fmt.Println(c, spline.GetFeatureNamesOut([]string{"monthly_temp"})[0])

	// Output: 8 monthly_temp_sp_0
}
