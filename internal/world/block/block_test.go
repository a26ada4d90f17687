package block

import "testing"

func TestCategoryClassification(t *testing.T) {
	cases := []struct {
		id    BlockID
		solid bool
		dig   bool
	}{
		{AirBlockID, false, false},
		{WaterBlockID, false, false},
		{StoneBlockID, true, true},
		{IronOreBlockID, true, true},
		{BedrockBlockID, true, false},
	}

	for _, c := range cases {
		if IsSolidID(c.id) != c.solid {
			t.Errorf("IsSolidID(%d): ожидалось %v", c.id, c.solid)
		}
		if CategoryOf(c.id).Diggable() != c.dig {
			t.Errorf("Diggable(%d): ожидалось %v", c.id, c.dig)
		}
	}
}

func TestFromWireName(t *testing.T) {
	if got := FromWireName("minecraft:diamond_ore"); got != DiamondOreBlockID {
		t.Errorf("Ожидался DiamondOreBlockID, получен %d", got)
	}
	if got := FromWireName(""); got != AirBlockID {
		t.Errorf("Пустое имя должно давать AirBlockID, получен %d", got)
	}
	// Неизвестный блок обязан считаться твердым: планировщик не должен
	// прокладывать путь сквозь то, что не умеет классифицировать.
	unknown := FromWireName("modname:weird_block")
	if unknown != UnknownBlockID || !IsSolidID(unknown) {
		t.Errorf("Неизвестное имя должно давать твердый UnknownBlockID, получен %d", unknown)
	}
}

func TestUnregisteredIDIsSolid(t *testing.T) {
	if !IsSolidID(BlockID(9999)) {
		t.Error("Незарегистрированный ID должен классифицироваться как твердый")
	}
}
