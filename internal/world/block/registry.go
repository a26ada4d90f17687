package block

// Definition описывает свойства типа блока
type Definition struct {
	ID       BlockID  // Внутренний идентификатор
	Name     string   // Человекочитаемое имя
	WireName string   // Имя в формате отчетов туртла ("minecraft:...")
	Category Category // Категория проходимости
	Hardness int      // Условная прочность (для статистики)
}

var (
	registry = make(map[BlockID]Definition)
	byWire   = make(map[string]BlockID)
)

// Register добавляет определение блока в регистр
func Register(def Definition) {
	registry[def.ID] = def
	if def.WireName != "" {
		byWire[def.WireName] = def.ID
	}
}

// Get возвращает определение для указанного ID
func Get(id BlockID) (Definition, bool) {
	def, exists := registry[id]
	return def, exists
}

// CategoryOf возвращает категорию блока.
// Неизвестный ID считается твердым: безопаснее планировать обход, чем копать.
func CategoryOf(id BlockID) Category {
	if def, exists := registry[id]; exists {
		return def.Category
	}
	return CategorySolid
}

// IsSolidID возвращает true, если блок с данным ID занимает воксель
func IsSolidID(id BlockID) bool {
	return CategoryOf(id).IsSolid()
}

// FromWireName преобразует имя блока из отчета туртла в BlockID.
// Неизвестные имена отображаются в UnknownBlockID (твердый).
func FromWireName(name string) BlockID {
	if id, exists := byWire[name]; exists {
		return id
	}
	if name == "" {
		return AirBlockID
	}
	return UnknownBlockID
}

// IsValidBlockID проверяет, является ли ID допустимым идентификатором блока
func IsValidBlockID(id BlockID) bool {
	_, exists := registry[id]
	return exists
}

func init() {
	defs := []Definition{
		{ID: AirBlockID, Name: "Air", WireName: "minecraft:air", Category: CategoryAir, Hardness: 0},
		{ID: StoneBlockID, Name: "Stone", WireName: "minecraft:stone", Category: CategorySolid, Hardness: 10},
		{ID: DirtBlockID, Name: "Dirt", WireName: "minecraft:dirt", Category: CategorySolid, Hardness: 3},
		{ID: GrassBlockID, Name: "Grass", WireName: "minecraft:grass_block", Category: CategorySolid, Hardness: 3},
		{ID: SandBlockID, Name: "Sand", WireName: "minecraft:sand", Category: CategorySolid, Hardness: 2},
		{ID: GravelBlockID, Name: "Gravel", WireName: "minecraft:gravel", Category: CategorySolid, Hardness: 2},
		{ID: WaterBlockID, Name: "Water", WireName: "minecraft:water", Category: CategoryFluid, Hardness: 0},
		{ID: LavaBlockID, Name: "Lava", WireName: "minecraft:lava", Category: CategoryFluid, Hardness: 0},
		{ID: CoalOreBlockID, Name: "Coal Ore", WireName: "minecraft:coal_ore", Category: CategoryOre, Hardness: 12},
		{ID: IronOreBlockID, Name: "Iron Ore", WireName: "minecraft:iron_ore", Category: CategoryOre, Hardness: 14},
		{ID: GoldOreBlockID, Name: "Gold Ore", WireName: "minecraft:gold_ore", Category: CategoryOre, Hardness: 14},
		{ID: DiamondOreBlockID, Name: "Diamond Ore", WireName: "minecraft:diamond_ore", Category: CategoryOre, Hardness: 18},
		{ID: RedstoneBlockID, Name: "Redstone Ore", WireName: "minecraft:redstone_ore", Category: CategoryOre, Hardness: 14},
		{ID: BedrockBlockID, Name: "Bedrock", WireName: "minecraft:bedrock", Category: CategoryUnbreakable, Hardness: 0},
		{ID: UnknownBlockID, Name: "Unknown", WireName: "", Category: CategorySolid, Hardness: 10},
	}
	for _, def := range defs {
		Register(def)
	}
}
