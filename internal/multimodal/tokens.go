package multimodal

// Tokens lays out the token span for a grid wide x tall patches in raster
// order. Every row ends in ImgBreak except the last, which ends in ImgEnd, so
// the span is (wide+1)*tall long.
func (ids SpecialImageIDs) Tokens(wide, tall int) []int {
	if wide <= 0 || tall <= 0 {
		return nil
	}

	tokens := make([]int, 0, (wide+1)*tall)
	for row := 0; row < tall; row++ {
		for col := 0; col < wide; col++ {
			tokens = append(tokens, ids.Img)
		}
		tokens = append(tokens, ids.ImgBreak)
	}
	tokens[len(tokens)-1] = ids.ImgEnd

	return tokens
}
