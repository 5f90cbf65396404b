package game

import (
	"fmt"
	"slices"

	"tycoon/internal/catalog"
)

type SkinView struct {
	catalog.Skin
	Owned    bool `json:"owned"`
	Equipped bool `json:"equipped"`
}

func (e *Engine) SkinBoard(s *PlayerState) []SkinView {
	skins := e.cat.Skins()
	out := make([]SkinView, 0, len(skins))
	for _, sk := range skins {
		out = append(out, SkinView{
			Skin:     sk,
			Owned:    slices.Contains(s.OwnedSkins, sk.ID),
			Equipped: s.EquippedSkin == sk.ID,
		})
	}
	return out
}

func (e *Engine) PurchaseSkin(s *PlayerState, skinID string) (catalog.Skin, []Event, error) {
	sk, ok := e.cat.Skin(skinID)
	if !ok {
		return catalog.Skin{}, nil, fmt.Errorf("%w: %s", ErrUnknownSkin, skinID)
	}
	if slices.Contains(s.OwnedSkins, sk.ID) {
		return catalog.Skin{}, nil, fmt.Errorf("%w: %s", ErrSkinOwned, sk.ID)
	}
	if s.Coins < sk.Cost {
		return catalog.Skin{}, nil, fmt.Errorf("%w: %s costs %s", ErrInsufficientFunds, sk.ID, FormatNumber(sk.Cost))
	}
	s.Coins -= sk.Cost
	s.OwnedSkins, _ = addUnique(s.OwnedSkins, sk.ID)
	return sk, []Event{{Type: EventSkinPurchased, Ref: sk.ID, Amount: sk.Cost, Message: sk.Name}}, nil
}

func (e *Engine) EquipSkin(s *PlayerState, skinID string) ([]Event, error) {
	if _, ok := e.cat.Skin(skinID); !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownSkin, skinID)
	}
	if !slices.Contains(s.OwnedSkins, skinID) {
		return nil, fmt.Errorf("%w: %s", ErrSkinNotOwned, skinID)
	}
	s.EquippedSkin = skinID
	return []Event{{Type: EventSkinEquipped, Ref: skinID}}, nil
}
