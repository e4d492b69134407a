package guard

// Stage names a pipeline stage.
type Stage string

// Pipeline stages in execution order.
const (
	StageParse               Stage = "parse"
	StageSingleStatement     Stage = "single_statement"
	StageSelectOnly          Stage = "select_only"
	StageBlockedKeywords     Stage = "blocked_keywords"
	StageTableExistence      Stage = "table_existence"
	StageColumnExistence     Stage = "column_existence"
	StageSchemaQualification Stage = "schema_qualification"
	StageBlockedFunctions    Stage = "blocked_functions"
	StageBlockedJoinTypes    Stage = "blocked_join_types"
	StageJoinPath            Stage = "join_path"
	StageJoinDepth           Stage = "join_depth"
	StageLimit               Stage = "limit"
)

// Stages lists every stage in execution order.
var Stages = []Stage{
	StageParse, StageSingleStatement, StageSelectOnly, StageBlockedKeywords,
	StageTableExistence, StageColumnExistence, StageSchemaQualification,
	StageBlockedFunctions, StageBlockedJoinTypes, StageJoinPath, StageJoinDepth,
	StageLimit,
}

// Kind classifies a rejection.
type Kind string

// Rejection kinds.
const (
	KindParse                   Kind = "ParseError"
	KindMultiStatement          Kind = "MultiStatementError"
	KindNonSelect               Kind = "NonSelectError"
	KindBlockedKeyword          Kind = "BlockedKeywordError"
	KindTableNotFound           Kind = "TableNotFoundError"
	KindSchemaQualification     Kind = "SchemaQualificationError"
	KindBlockedFunction         Kind = "BlockedFunctionError"
	KindBlockedJoinType         Kind = "BlockedJoinTypeError"
	KindJoinPath                Kind = "JoinPathError"
	KindJoinDepthExceeded       Kind = "JoinDepthExceededError"
	KindMissingWhereForDeepJoin Kind = "MissingWhereForDeepJoin"
)

// Issue is a warning or a rejection raised by a stage. Kind is empty for
// warnings.
type Issue struct {
	Stage   Stage  `json:"stage"`
	Kind    Kind   `json:"kind,omitempty"`
	Message string `json:"message"`
}

func (i Issue) String() string {
	if i.Kind != "" {
		return string(i.Stage) + ": " + string(i.Kind) + ": " + i.Message
	}
	return string(i.Stage) + ": " + i.Message
}

// Result is the outcome of validating one SQL text. It is a pure function
// of the text and the rule-set version.
type Result struct {
	Accepted bool `json:"accepted"`
	// FinalSQL is the rewritten query when accepted and the input text
	// when rejected.
	FinalSQL       string  `json:"final_sql"`
	Warnings       []Issue `json:"warnings"`
	Error          *Issue  `json:"error,omitempty"`
	JoinDepth      int     `json:"join_depth"`
	RuleSetVersion uint64  `json:"rule_set_version"`
	// Explanation summarizes why an accepted query is considered safe.
	Explanation []string `json:"explanation,omitempty"`
}
