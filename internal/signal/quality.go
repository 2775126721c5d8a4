package signal

// Quality is a coarse human label for a signal level.
type Quality string

const (
	QualityUnusable  Quality = "Unusable"
	QualityVeryWeak  Quality = "Very Weak"
	QualityWeak      Quality = "Weak"
	QualityFair      Quality = "Fair"
	QualityGood      Quality = "Good"
	QualityVeryGood  Quality = "Very Good"
	QualityExcellent Quality = "Excellent"
	QualityPerfect   Quality = "Perfect"
)

type band struct {
	below   float64
	quality Quality
}

var percentBands = []band{
	{23, QualityVeryWeak},
	{38, QualityWeak},
	{53, QualityFair},
	{68, QualityGood},
	{84, QualityVeryGood},
}

var dbmBands = []band{
	{-90, QualityUnusable},
	{-80, QualityVeryWeak},
	{-70, QualityWeak},
	{-60, QualityFair},
	{-50, QualityGood},
	{-30, QualityExcellent},
}

// QualityOf classifies level expressed in u.
func QualityOf(u Unit, level float64) Quality {
	bands, top := percentBands, QualityExcellent
	if u == UnitDBm {
		bands, top = dbmBands, QualityPerfect
	}
	for _, b := range bands {
		if level < b.below {
			return b.quality
		}
	}
	return top
}
