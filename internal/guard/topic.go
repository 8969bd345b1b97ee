package guard

import "strings"

// DefaultRefusal is returned for questions outside data science.
const DefaultRefusal = "I can only help with data science topics such as statistics, " +
	"machine learning, data analysis and the tools used for them. " +
	"Could you rephrase your question in that context?"

// DefaultTopicKeywords are matched as whole words or phrases, case-insensitively.
var DefaultTopicKeywords = []string{
	"data", "dataset", "datasets", "dataframe", "statistics", "statistical", "stats",
	"probability", "distribution", "regression", "classification", "clustering",
	"model", "models", "machine learning", "ml", "deep learning", "neural network",
	"feature", "features", "training", "overfitting", "underfitting", "bias", "variance",
	"cross-validation", "validation", "accuracy", "precision", "recall", "auc", "roc",
	"p-value", "hypothesis", "correlation", "mean", "median", "standard deviation",
	"pandas", "numpy", "scikit-learn", "sklearn", "matplotlib", "seaborn", "jupyter",
	"python", "sql", "r", "tensorflow", "pytorch", "xgboost", "visualization",
	"analysis", "analytics", "etl", "pipeline", "outlier", "outliers", "sampling",
	"bayes", "bayesian", "gradient", "loss", "optimizer", "embedding", "llm",
	"time series", "forecast", "forecasting", "pca", "k-means", "knn", "svm",
	"random forest", "decision tree", "a/b test", "experiment", "metric", "metrics",
}

// TopicGate allows questions that mention at least one keyword. An empty
// keyword list allows everything.
type TopicGate struct {
	keywords []string
	refusal  string
}

// NewTopicGate builds a gate. Empty refusal selects DefaultRefusal.
func NewTopicGate(keywords []string, refusal string) *TopicGate {
	if strings.TrimSpace(refusal) == "" {
		refusal = DefaultRefusal
	}
	return &TopicGate{keywords: normalize(keywords), refusal: refusal}
}

// Check is a pure predicate over the question text.
func (g *TopicGate) Check(text string) Verdict {
	if len(g.keywords) == 0 {
		return Verdict{Decision: Allow}
	}
	if containsAny(strings.ToLower(text), g.keywords) {
		return Verdict{Decision: Allow}
	}
	return Verdict{Decision: Reject, Reason: g.refusal}
}

var _ Gate = (*TopicGate)(nil)
