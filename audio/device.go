package audio

import (
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"
)

// FindDevice returns the capture device whose name contains name
// (case-insensitive). An empty name selects the system default (nil).
func FindDevice(ctx Context, name string) (*DeviceInfo, error) {
	if name == "" {
		return nil, nil
	}
	devices, err := ctx.Devices()
	if err != nil {
		return nil, fmt.Errorf("enumerating devices: %w", err)
	}
	want := strings.ToLower(name)
	for i := range devices {
		if strings.Contains(strings.ToLower(devices[i].Name), want) {
			return &devices[i], nil
		}
	}
	return nil, fmt.Errorf("no capture device matching %q", name)
}

type pickerAction int

const (
	pickerNone pickerAction = iota
	pickerConfirm
	pickerAbort
)

// pickerKey applies one raw key sequence to the cursor.
func pickerKey(key []byte, cursor, count int) (int, pickerAction) {
	up := func() int { return max(cursor-1, 0) }
	down := func() int { return min(cursor+1, count-1) }

	if len(key) == 1 {
		switch key[0] {
		case '\r':
			return cursor, pickerConfirm
		case 3: // ctrl+c
			return cursor, pickerAbort
		case 'j':
			return down(), pickerNone
		case 'k':
			return up(), pickerNone
		}
	} else if len(key) == 3 && key[0] == 0x1b && key[1] == '[' {
		switch key[2] {
		case 'A':
			return up(), pickerNone
		case 'B':
			return down(), pickerNone
		}
	}
	return cursor, pickerNone
}

func renderPicker(w io.Writer, devices []DeviceInfo, cursor int) {
	fmt.Fprint(w, "\r\x1b[J")
	fmt.Fprint(w, "Select microphone (↑/↓, Enter to confirm):\r\n\r\n")
	for i, d := range devices {
		btTag := ""
		if IsBluetooth(d.Name) {
			btTag = " \x1b[33m[⚠ Lower audio quality]\x1b[0m"
		}
		if i == cursor {
			fmt.Fprintf(w, "  \x1b[1;36m▶ %s%s\x1b[0m\r\n", d.Name, btTag)
		} else {
			fmt.Fprintf(w, "    %s%s\r\n", d.Name, btTag)
		}
	}
}

// ErrPickerAborted is returned when the user hits ctrl+c in SelectDevice.
var ErrPickerAborted = fmt.Errorf("device selection aborted")

// SelectDevice presents an interactive picker on the terminal. With a
// single device it returns that device without prompting.
func SelectDevice(ctx Context) (*DeviceInfo, error) {
	devices, err := ctx.Devices()
	if err != nil {
		return nil, fmt.Errorf("enumerating devices: %w", err)
	}
	if len(devices) == 0 {
		return nil, fmt.Errorf("no capture devices found")
	}
	if len(devices) == 1 {
		return &devices[0], nil
	}

	fd := int(os.Stdin.Fd())
	oldState, err := term.MakeRaw(fd)
	if err != nil {
		return nil, fmt.Errorf("setting raw mode: %w", err)
	}
	defer term.Restore(fd, oldState)

	cursor := 0
	renderPicker(os.Stdout, devices, cursor)

	buf := make([]byte, 3)
	for {
		n, err := os.Stdin.Read(buf)
		if err != nil {
			return nil, fmt.Errorf("reading input: %w", err)
		}

		var action pickerAction
		cursor, action = pickerKey(buf[:n], cursor, len(devices))
		switch action {
		case pickerConfirm:
			fmt.Print("\r\n")
			return &devices[cursor], nil
		case pickerAbort:
			fmt.Print("\r\n")
			return nil, ErrPickerAborted
		}

		fmt.Printf("\x1b[%dA", len(devices)+2)
		renderPicker(os.Stdout, devices, cursor)
	}
}
