package davkit

import "fmt"

const (
	DepthZero     = 0
	DepthOne      = 1
	DepthInfinity = -1
)

// ParseDepth 解析Depth头, 缺省时按infinity处理
func ParseDepth(h string) (int, error) {
	switch h {
	case "":
		return DepthInfinity, nil
	case "0":
		return DepthZero, nil
	case "1":
		return DepthOne, nil
	case "infinity", "Infinity":
		return DepthInfinity, nil
	default:
		return 0, fmt.Errorf("%w: invalid depth:%s", ErrBadRequest, h)
	}
}

func DepthString(depth int) string {
	if depth == DepthInfinity {
		return "infinity"
	}
	return fmt.Sprintf("%d", depth)
}
