package block

// BlockID представляет идентификатор блока
type BlockID uint16

// Константы ID блоков
const (
	// Базовые типы блоков
	AirBlockID    BlockID = iota // 0
	StoneBlockID                 // 1
	DirtBlockID                  // 2
	GrassBlockID                 // 3
	SandBlockID                  // 4
	GravelBlockID                // 5
	WaterBlockID                 // 6
	LavaBlockID                  // 7

	// Руды (начиная со 100)
	CoalOreBlockID    BlockID = 100
	IronOreBlockID    BlockID = 101
	GoldOreBlockID    BlockID = 102
	DiamondOreBlockID BlockID = 103
	RedstoneBlockID   BlockID = 104

	// Специальные блоки (начиная с 1000)
	BedrockBlockID BlockID = 1000
	UnknownBlockID BlockID = 1001
)

// Category классифицирует блок по проходимости и ценности.
// Закрытое перечисление вместо строковых проверок имени блока.
type Category int

const (
	CategoryAir         Category = iota // Пустота, проходимо
	CategoryFluid                       // Жидкость, не твердое, но и не occupiable
	CategorySolid                       // Твердый блок, копаемый
	CategoryOre                         // Твердый блок с рудой
	CategoryUnbreakable                 // Твердый блок, не копаемый (bedrock)
)

// String возвращает строковое представление категории
func (c Category) String() string {
	switch c {
	case CategoryAir:
		return "air"
	case CategoryFluid:
		return "fluid"
	case CategorySolid:
		return "solid"
	case CategoryOre:
		return "ore"
	case CategoryUnbreakable:
		return "unbreakable"
	default:
		return "unknown"
	}
}

// IsSolid возвращает true для категорий, занимающих воксель
func (c Category) IsSolid() bool {
	return c == CategorySolid || c == CategoryOre || c == CategoryUnbreakable
}

// Diggable возвращает true, если блок данной категории можно выкопать
func (c Category) Diggable() bool {
	return c == CategorySolid || c == CategoryOre
}
