// Package kfmt provides a minimal, allocation-free Printf implementation
// that can be used before the Go runtime is fully initialized.
package kfmt

import "io"

var (
	errMissingArg   = []byte("(MISSING)")
	errWrongArgType = []byte("%!(WRONGTYPE)")
	errNoVerb       = []byte("%!(NOVERB)")
	errExtraArg     = []byte("%!(EXTRA)")
	trueValue       = []byte("true")
	falseValue      = []byte("false")

	// singleByte is a shared buffer for emitting individual characters
	// without triggering a string-to-slice conversion.
	singleByte = []byte{0}

	// earlyPrintBuffer captures Printf output generated before an output
	// sink has been registered.
	earlyPrintBuffer ringBuffer

	// outputSink is the io.Writer that receives Printf output. While nil,
	// output is redirected to earlyPrintBuffer.
	outputSink io.Writer
)

// SetOutputSink sets the target for Printf calls to w and replays any output
// accumulated in the early boot buffer to it.
func SetOutputSink(w io.Writer) {
	outputSink = w
	if w != nil {
		io.Copy(w, &earlyPrintBuffer)
	}
}

// Printf formats its arguments and writes them to the active output sink. If
// no sink has been registered yet, the output is retained in a ring buffer
// and flushed by the next SetOutputSink call.
//
// The supported subset of formatting verbs is:
//
//	%s string or byte slice
//	%o base 8 integer
//	%d base 10 integer
//	%x base 16 integer, lower-case
//	%t boolean, "true" or "false"
//
// A decimal width may precede the verb. Strings and base-10 integers shorter
// than the width are left-padded with spaces; base-8 and base-16 integers are
// left-padded with zeroes. Pointer and float verbs are intentionally unsupported as
// formatting them requires reflect, which cannot be imported before memory
// management is available.
func Printf(format string, args ...interface{}) {
	w := outputSink
	if w == nil {
		w = &earlyPrintBuffer
	}
	Fprintf(w, format, args...)
}

// Fprintf behaves exactly like Printf but writes the formatted output to w.
func Fprintf(w io.Writer, format string, args ...interface{}) {
	var (
		argIndex int
		fmtLen   = len(format)
	)

	for i := 0; i < fmtLen; i++ {
		if format[i] != '%' {
			emitByte(w, format[i])
			continue
		}

		// Scan the optional width digits.
		i++
		padLen := 0
		for ; i < fmtLen && format[i] >= '0' && format[i] <= '9'; i++ {
			padLen = padLen*10 + int(format[i]-'0')
		}

		if i == fmtLen {
			emit(w, errNoVerb)
			break
		}

		if format[i] == '%' {
			emitByte(w, '%')
			continue
		}

		if argIndex >= len(args) {
			emit(w, errMissingArg)
			continue
		}

		switch format[i] {
		case 'o':
			fmtInt(w, args[argIndex], 8, padLen)
		case 'd':
			fmtInt(w, args[argIndex], 10, padLen)
		case 'x':
			fmtInt(w, args[argIndex], 16, padLen)
		case 's':
			fmtString(w, args[argIndex], padLen)
		case 't':
			fmtBool(w, args[argIndex])
		default:
			emit(w, errNoVerb)
		}
		argIndex++
	}

	for ; argIndex < len(args); argIndex++ {
		emit(w, errExtraArg)
	}
}

func emit(w io.Writer, p []byte) {
	w.Write(p)
}

func emitByte(w io.Writer, b byte) {
	singleByte[0] = b
	w.Write(singleByte)
}

// fmtRepeat emits ch count times; non-positive counts emit nothing.
func fmtRepeat(w io.Writer, ch byte, count int) {
	for i := 0; i < count; i++ {
		emitByte(w, ch)
	}
}

// fmtBool emits a formatted version of boolean value v.
func fmtBool(w io.Writer, v interface{}) {
	bVal, isBool := v.(bool)
	switch {
	case !isBool:
		emit(w, errWrongArgType)
	case bVal:
		emit(w, trueValue)
	default:
		emit(w, falseValue)
	}
}

// fmtString emits a formatted version of string or byte-slice value v,
// left-padding with spaces up to padLen.
func fmtString(w io.Writer, v interface{}, padLen int) {
	switch sVal := v.(type) {
	case string:
		fmtRepeat(w, ' ', padLen-len(sVal))
		// Converting the string to a byte slice would allocate, so the
		// string is emitted one byte at a time.
		for i := 0; i < len(sVal); i++ {
			emitByte(w, sVal[i])
		}
	case []byte:
		fmtRepeat(w, ' ', padLen-len(sVal))
		emit(w, sVal)
	default:
		emit(w, errWrongArgType)
	}
}

// fmtInt emits a formatted version of integer value v in the requested base.
// Base-16 output is left-padded with zeroes and all other bases with spaces
// up to padLen.
func fmtInt(w io.Writer, v interface{}, base, padLen int) {
	var (
		uVal     uint64
		negative bool
	)

	switch iVal := v.(type) {
	case uint8:
		uVal = uint64(iVal)
	case uint16:
		uVal = uint64(iVal)
	case uint32:
		uVal = uint64(iVal)
	case uint64:
		uVal = iVal
	case uint:
		uVal = uint64(iVal)
	case uintptr:
		uVal = uint64(iVal)
	case int8:
		uVal, negative = abs(int64(iVal))
	case int16:
		uVal, negative = abs(int64(iVal))
	case int32:
		uVal, negative = abs(int64(iVal))
	case int64:
		uVal, negative = abs(iVal)
	case int:
		uVal, negative = abs(int64(iVal))
	default:
		emit(w, errWrongArgType)
		return
	}

	// 64 bits of base-8 output plus a sign need at most 23 digits.
	var (
		digits  [23]byte
		numFree = len(digits)
	)

	for {
		numFree--
		digit := byte(uVal % uint64(base))
		if digit < 10 {
			digits[numFree] = '0' + digit
		} else {
			digits[numFree] = 'a' + digit - 10
		}

		uVal /= uint64(base)
		if uVal == 0 {
			break
		}
	}

	if negative {
		numFree--
		digits[numFree] = '-'
	}

	padCh := byte(' ')
	if base != 10 {
		padCh = '0'
	}
	fmtRepeat(w, padCh, padLen-(len(digits)-numFree))

	emit(w, digits[numFree:])
}

func abs(v int64) (uint64, bool) {
	if v < 0 {
		return uint64(-v), true
	}
	return uint64(v), false
}
