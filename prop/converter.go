package prop

import (
	"fmt"
	"net/http"
	"strconv"
	"time"
)

// IConverter 类型值与DAV XML文本/片段之间的互转
type IConverter interface {
	Encode(v interface{}) (string, error)
	Decode(s string) (interface{}, error)
}

// rfc1123Converter getlastmodified等属性, UTC, 时区字面量按http惯例写GMT
type rfc1123Converter struct{}

func (rfc1123Converter) Encode(v interface{}) (string, error) {
	t, ok := v.(time.Time)
	if !ok {
		return "", fmt.Errorf("rfc1123: not a time value")
	}
	return t.UTC().Format(http.TimeFormat), nil
}

func (rfc1123Converter) Decode(s string) (interface{}, error) {
	for _, layout := range []string{http.TimeFormat, time.RFC1123, time.RFC1123Z} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return nil, fmt.Errorf("rfc1123: parse failed, value:%s", s)
}

// iso8601Converter creationdate日期(Win32*日期走rfc1123Converter)。
// 秒的小数部分一律截断到毫秒, win客户端解析不了更高精度
type iso8601Converter struct{}

const iso8601Milli = "2006-01-02T15:04:05.000Z07:00"

func (iso8601Converter) Encode(v interface{}) (string, error) {
	t, ok := v.(time.Time)
	if !ok {
		return "", fmt.Errorf("iso8601: not a time value")
	}
	return t.UTC().Truncate(time.Millisecond).Format(iso8601Milli), nil
}

func (iso8601Converter) Decode(s string) (interface{}, error) {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return nil, fmt.Errorf("iso8601: parse failed, err:%w", err)
	}
	return t.UTC().Truncate(time.Millisecond), nil
}

// boolConverter iscollection等, 文本固定"1"/"0"
type boolConverter struct{}

func (boolConverter) Encode(v interface{}) (string, error) {
	b, ok := v.(bool)
	if !ok {
		return "", fmt.Errorf("bool: not a bool value")
	}
	if b {
		return "1", nil
	}
	return "0", nil
}

func (boolConverter) Decode(s string) (interface{}, error) {
	switch s {
	case "1", "true":
		return true, nil
	case "0", "false":
		return false, nil
	default:
		return nil, fmt.Errorf("bool: invalid text:%s", s)
	}
}

// int64Converter getcontentlength, 64位解析
type int64Converter struct{}

func (int64Converter) Encode(v interface{}) (string, error) {
	n, ok := v.(int64)
	if !ok {
		return "", fmt.Errorf("int64: not an int64 value")
	}
	return strconv.FormatInt(n, 10), nil
}

func (int64Converter) Decode(s string) (interface{}, error) {
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("int64: parse failed, err:%w", err)
	}
	return n, nil
}

type stringConverter struct{}

func (stringConverter) Encode(v interface{}) (string, error) {
	s, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("string: not a string value")
	}
	return xmlEscape(s), nil
}

func (stringConverter) Decode(s string) (interface{}, error) {
	return xmlUnescape(s), nil
}

// xmlConverter resourcetype/lockdiscovery这类值本身就是XML片段的属性
type xmlConverter struct{}

func (xmlConverter) Encode(v interface{}) (string, error) {
	s, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("xml: not an xml fragment")
	}
	return s, nil
}

func (xmlConverter) Decode(s string) (interface{}, error) {
	return s, nil
}
