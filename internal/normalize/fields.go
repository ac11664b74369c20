package normalize

// 每个规范字段的候选原始字段名，按优先级排列；第一个存在且非 null 的候选生效。
// 带点的名称表示嵌套对象路径。
var (
	IDFields         = []string{"bggId", "gameId", "id", "BGGId", "BGGID"}
	NameFields       = []string{"name", "title", "primaryName", "Name", "Title"}
	YearFields       = []string{"yearPublished", "YearPublished", "year", "yearPublishedInt", "Year"}
	AvgRatingFields  = []string{"average", "avgRating", "AvgRating", "rating", "avg", "Avg"}
	BayesAvgFields   = []string{"bayesAverage", "bayesAvg", "bayesianAverage", "BayesAvgRating", "BayesAvg"}
	StdDevFields     = []string{"stdDev", "stdDeviation", "sd", "StdDev"}
	NumOwnedFields   = []string{"numOwned", "NumOwned", "popularity.numOwned", "owned", "ownedCount"}
	NumWantsFields   = []string{"want", "wants", "wishlist", "numWant", "NumWant", "NumWish"}
	NumRatingsFields = []string{"numRatings", "NumUserRatings", "NumRatings", "usersRated", "votes", "numVotes"}
	RanksFields      = []string{"ranks", "rank"}

	MechanicsFields     = []string{"mechanics", "Mechanics", "mechanicList", "mechanicsList"}
	ThemesFields        = []string{"themes", "Themes", "themeList", "themesList"}
	SubcategoriesFields = []string{"subcategories", "Subcategories", "subcategoryList"}
	DesignersFields     = []string{"designers", "Designers", "designerList"}
	ArtistsFields       = []string{"artists", "Artists", "artistList"}
	PublishersFields    = []string{"publishers", "Publishers", "publisherList"}
)

// 关系集合（designers/publishers/评分分布）中用作别名的字段
var RelationAliasFields = []string{"gameId", "BGGId", "bggId", "id"}

// knownFields 任何已知的规范/标识字段名，二元标记启发式不会把它们当作类别标签
var knownFields = buildKnownFields()

func buildKnownFields() map[string]struct{} {
	groups := [][]string{
		IDFields, NameFields, YearFields, AvgRatingFields, BayesAvgFields, StdDevFields,
		NumOwnedFields, NumWantsFields, NumRatingsFields, RanksFields,
		MechanicsFields, ThemesFields, SubcategoriesFields, DesignersFields, ArtistsFields, PublishersFields,
		RelationAliasFields, {"_id", "popularity"},
	}
	m := make(map[string]struct{})
	for _, g := range groups {
		for _, f := range g {
			m[f] = struct{}{}
		}
	}
	return m
}

// IsKnownField 是否为已知字段名
func IsKnownField(key string) bool {
	_, ok := knownFields[key]
	return ok
}
