package redis

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// CommandError is an error reply sent by the node itself, as opposed to
// a transport failure. The node was reachable and answered.
type CommandError struct {
	Reply string
}

func (e *CommandError) Error() string {
	return e.Reply
}

// parseReply reads one RESP reply. Arrays decode to []any, integers to
// int64, simple and bulk strings to string, nil replies to nil.
func parseReply(reader *bufio.Reader) (any, error) {
	prefix, err := reader.ReadByte()
	if err != nil {
		return nil, err
	}

	switch prefix {
	case '*':
		line, err := readLine(reader)
		if err != nil {
			return nil, err
		}
		count, err := strconv.Atoi(line)
		if err != nil {
			return nil, fmt.Errorf("resp array length: %w", err)
		}
		if count == -1 {
			return nil, nil
		}
		if count < -1 {
			return nil, fmt.Errorf("resp array length negative: %d", count)
		}
		items := make([]any, 0, count)
		for i := 0; i < count; i++ {
			item, err := parseReply(reader)
			if err != nil {
				return nil, err
			}
			items = append(items, item)
		}
		return items, nil
	case ':':
		line, err := readLine(reader)
		if err != nil {
			return nil, err
		}
		n, err := strconv.ParseInt(line, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("resp integer: %w", err)
		}
		return n, nil
	case '$':
		line, err := readLine(reader)
		if err != nil {
			return nil, err
		}
		length, err := strconv.Atoi(line)
		if err != nil {
			return nil, fmt.Errorf("resp bulk length: %w", err)
		}
		if length == -1 {
			return nil, nil
		}
		if length < -1 {
			return nil, fmt.Errorf("resp bulk length negative: %d", length)
		}
		buf := make([]byte, length+2)
		if _, err := io.ReadFull(reader, buf); err != nil {
			return nil, err
		}
		if buf[length] != '\r' || buf[length+1] != '\n' {
			return nil, fmt.Errorf("resp bulk missing terminator")
		}
		return string(buf[:length]), nil
	case '+':
		line, err := readLine(reader)
		if err != nil {
			return nil, err
		}
		return line, nil
	case '-':
		line, err := readLine(reader)
		if err != nil {
			return nil, err
		}
		return nil, &CommandError{Reply: line}
	default:
		return nil, fmt.Errorf("resp: unexpected prefix %q", prefix)
	}
}

func readLine(reader *bufio.Reader) (string, error) {
	line, err := reader.ReadString('\n')
	if err != nil {
		return "", err
	}
	if !strings.HasSuffix(line, "\r\n") {
		return "", fmt.Errorf("resp: invalid line ending")
	}
	return strings.TrimSuffix(line, "\r\n"), nil
}

// writeCommand encodes args as a RESP array of bulk strings
func writeCommand(w io.Writer, args []string) error {
	var b strings.Builder
	fmt.Fprintf(&b, "*%d\r\n", len(args))
	for _, arg := range args {
		fmt.Fprintf(&b, "$%d\r\n%s\r\n", len(arg), arg)
	}
	_, err := io.WriteString(w, b.String())
	return err
}
