package preprocessing

import (
	"fmt"
	"sort"

	"gonum.org/v1/gonum/mat"

	"github.com/banerjixplores/climacrop/core/model"
	cerrors "github.com/banerjixplores/climacrop/pkg/errors"
)

// Unknown-category handling modes for OneHotEncoder.
const (
	HandleUnknownIgnore = "ignore"
	HandleUnknownError  = "error"
)

// OneHotEncoder はscikit-learn互換のOne-Hotエンコーダー
// カテゴリカルな文字列データを0/1のバイナリベクトルに変換する
type OneHotEncoder struct {
	state *model.StateManager

	// HandleUnknown は未知カテゴリの扱い ("ignore" は全て0、"error" はエラー)
	HandleUnknown string

	// Categories は各特徴量のカテゴリ一覧（ソート済み）
	Categories [][]string

	// CategoryToIdx は各特徴量のカテゴリ→インデックスマップ
	CategoryToIdx []map[string]int

	// NFeatures は入力特徴量数
	NFeatures int

	// NOutputs は出力特徴量数（全カテゴリの合計数）
	NOutputs int
}

// NewOneHotEncoder は未知カテゴリを無視するOneHotEncoderを作成する
//
// 使用例:
//
//	encoder := preprocessing.NewOneHotEncoder()
//	err := encoder.Fit(data)
//	encoded, err := encoder.Transform(data)
func NewOneHotEncoder() *OneHotEncoder {
	return &OneHotEncoder{state: model.NewStateManager(), HandleUnknown: HandleUnknownIgnore}
}

// Fit は訓練データからカテゴリ情報を学習する
//
// パラメータ:
//   - data: 訓練データ (n_samples × n_features の文字列スライス)
func (e *OneHotEncoder) Fit(data [][]string) (err error) {
	defer cerrors.Recover(&err, "OneHotEncoder.Fit")
	if len(data) == 0 {
		return cerrors.NewModelError("OneHotEncoder.Fit", "empty data", cerrors.ErrEmptyData)
	}
	if len(data[0]) == 0 {
		return cerrors.NewModelError("OneHotEncoder.Fit", "empty features", cerrors.ErrEmptyData)
	}

	nFeatures := len(data[0])

	// 特徴量数の一貫性チェック
	for _, row := range data {
		if len(row) != nFeatures {
			return cerrors.NewDimensionError("OneHotEncoder.Fit", nFeatures, len(row), 1)
		}
	}

	e.NFeatures = nFeatures
	e.Categories = make([][]string, nFeatures)
	e.CategoryToIdx = make([]map[string]int, nFeatures)
	e.NOutputs = 0

	for j := 0; j < nFeatures; j++ {
		// サンプル全体からユニークなカテゴリを収集
		categorySet := make(map[string]bool)
		for _, row := range data {
			categorySet[row[j]] = true
		}

		categories := make([]string, 0, len(categorySet))
		for category := range categorySet {
			categories = append(categories, category)
		}
		sort.Strings(categories)

		e.Categories[j] = categories
		idx := make(map[string]int, len(categories))
		for k, category := range categories {
			idx[category] = k
		}
		e.CategoryToIdx[j] = idx
		e.NOutputs += len(categories)
	}

	e.state.SetDimensions(nFeatures, len(data))
	e.state.SetFitted()
	return nil
}

// Transform は学習済みのカテゴリ情報を使ってデータをone-hot encodingする
//
// 未知カテゴリは HandleUnknown が "ignore" なら全て0の行になる。
func (e *OneHotEncoder) Transform(data [][]string) (_ mat.Matrix, err error) {
	defer cerrors.Recover(&err, "OneHotEncoder.Transform")
	if !e.state.IsFitted() {
		return nil, cerrors.NewNotFittedError("OneHotEncoder", "Transform")
	}
	if len(data) == 0 {
		return nil, cerrors.NewModelError("OneHotEncoder.Transform", "empty data", cerrors.ErrEmptyData)
	}

	nSamples := len(data)
	result := mat.NewDense(nSamples, e.NOutputs, nil)

	for i, row := range data {
		if len(row) != e.NFeatures {
			return nil, cerrors.NewDimensionError("OneHotEncoder.Transform", e.NFeatures, len(row), 1)
		}
		outputIdx := 0
		for j, category := range row {
			if idx, ok := e.CategoryToIdx[j][category]; ok {
				result.Set(i, outputIdx+idx, 1.0)
			} else if e.HandleUnknown == HandleUnknownError {
				return nil, cerrors.NewValueError("OneHotEncoder.Transform",
					fmt.Sprintf("unknown category %q in feature %d", category, j))
			}
			outputIdx += len(e.Categories[j])
		}
	}

	return result, nil
}

// FitTransform は訓練データで学習し、同じデータを変換する
func (e *OneHotEncoder) FitTransform(data [][]string) (mat.Matrix, error) {
	if err := e.Fit(data); err != nil {
		return nil, err
	}
	return e.Transform(data)
}

// IsFitted reports whether Fit has completed.
func (e *OneHotEncoder) IsFitted() bool { return e.state.IsFitted() }

// GetFeatureNamesOut は変換後の特徴量の名前を返す
//
// 例:
//   - 入力特徴量名が["pathogen_group", "system_type"]の場合
//   - 出力: ["pathogen_group_Pest", "pathogen_group_Virus", "system_type_Wild", ...]
func (e *OneHotEncoder) GetFeatureNamesOut(inputFeatures []string) []string {
	if !e.state.IsFitted() {
		return nil
	}

	var out []string
	for i, categories := range e.Categories {
		name := fmt.Sprintf("x%d", i)
		if i < len(inputFeatures) {
			name = inputFeatures[i]
		}
		for _, category := range categories {
			out = append(out, name+"_"+category)
		}
	}
	return out
}

// GetParams returns the encoder parameters.
func (e *OneHotEncoder) GetParams() map[string]interface{} {
	return map[string]interface{}{"handle_unknown": e.HandleUnknown}
}

// SetParams sets handle_unknown.
func (e *OneHotEncoder) SetParams(params map[string]interface{}) error {
	for k, v := range params {
		if k != "handle_unknown" {
			return model.UnknownParam("OneHotEncoder", k)
		}
		s, err := model.ParamString(k, v)
		if err != nil {
			return err
		}
		if s != HandleUnknownIgnore && s != HandleUnknownError {
			return cerrors.NewValidationError(k, "must be ignore or error", s)
		}
		e.HandleUnknown = s
	}
	e.state.Reset()
	return nil
}

// Clone returns an unfitted copy with the same parameters.
func (e *OneHotEncoder) Clone() model.Estimator {
	c := NewOneHotEncoder()
	c.HandleUnknown = e.HandleUnknown
	return c
}
