package window

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/bryanchriswhite/scenicview/internal/model"
)

func TestDecodeSizeHintsHonoursFlags(t *testing.T) {
	values := make([]uint32, 18)
	values[0] = sizeHintMin | sizeHintResizeInc | sizeHintBase
	values[5], values[6] = 200, 100
	values[7], values[8] = 800, 600 // max size flag not set
	values[9], values[10] = 8, 16
	values[15], values[16] = 4, 2

	assert.Equal(t, model.SizeHints{
		MinWidth: 200, MinHeight: 100,
		WidthInc: 8, HeightInc: 16,
		BaseWidth: 4, BaseHeight: 2,
	}, decodeSizeHints(values))
}

func TestDecodeSizeHintsRejectsShortValues(t *testing.T) {
	assert.Equal(t, model.SizeHints{}, decodeSizeHints([]uint32{sizeHintMin, 0, 0, 0, 0, 10, 10}))
	assert.Equal(t, model.SizeHints{}, decodeSizeHints(nil))
}

func TestDecodeUint32sIsLittleEndian(t *testing.T) {
	data := make([]byte, 9)
	binary.LittleEndian.PutUint32(data[0:], 1)
	binary.LittleEndian.PutUint32(data[4:], 0x01020304)

	assert.Equal(t, []uint32{1, 0x01020304}, decodeUint32s(data))
}
