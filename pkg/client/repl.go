package client

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/dnfs-project/dnfs/internal/cli/prompt"
	"github.com/dnfs-project/dnfs/internal/wire"
)

// REPL drives the client's interactive command loop against an
// already-connected, logged-in Client (spec.md §6's command surface and §7's
// stdout/stderr contract). Line input goes through prompt.RawLine, which
// wraps the same promptui reader internal/cli/prompt uses elsewhere but with
// the styled label/colon template replaced by the literal "> "/"w> " prompt
// text the wire protocol's client shell mandates.
type REPL struct {
	client *Client
	out    io.Writer
	errOut io.Writer
}

// NewREPL wires a REPL to an already-authenticated client and the given
// output streams (typically os.Stdout/os.Stderr); input is read from the
// terminal directly via promptui.
func NewREPL(c *Client, out, errOut io.Writer) *REPL {
	return &REPL{client: c, out: out, errOut: errOut}
}

// Run reads commands until EOF or "exit", returning nil on a clean exit.
func (r *REPL) Run() error {
	for {
		line, err := prompt.RawLine("> ")
		if err != nil {
			if prompt.IsEOF(err) || prompt.IsAborted(err) {
				return nil
			}
			return err
		}
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		fields := strings.Fields(line)
		cmd := fields[0]
		args := fields[1:]

		if cmd == "exit" {
			return nil
		}
		if cmd == "help" {
			r.printHelp()
			continue
		}
		if err := r.dispatch(cmd, args); err != nil {
			fmt.Fprintf(r.errOut, "ERROR: %s\n", err.Error())
		}
	}
}

func (r *REPL) success(msg string) {
	if msg == "" {
		fmt.Fprintln(r.out, "SUCCESS")
		return
	}
	fmt.Fprintf(r.out, "SUCCESS: %s\n", msg)
}

func (r *REPL) dispatch(cmd string, args []string) error {
	switch cmd {
	case "VIEW":
		return r.cmdView(args)
	case "READ":
		return r.cmdRead(args)
	case "STREAM":
		return r.cmdStream(args)
	case "CREATE":
		return r.cmdCreate(args)
	case "DELETE":
		return r.cmdDelete(args)
	case "INFO":
		return r.cmdInfo(args)
	case "WRITE":
		return r.cmdWrite(args)
	case "UNDO":
		return r.cmdUndo(args)
	case "EXEC":
		return r.cmdExec(args)
	case "LIST":
		return r.cmdList(args)
	case "ADDACCESS":
		return r.cmdAccessAdd(args)
	case "REMACCESS":
		return r.cmdAccessRem(args)
	case "REQACCESS":
		return r.cmdReqAccess(args)
	case "VIEWREQS":
		return r.cmdViewReqs(args)
	case "GRANTACCESS":
		return r.cmdGrantAccess(args)
	case "CREATEFOLDER":
		return r.cmdCreateFolder(args)
	case "VIEWFOLDER":
		return r.cmdViewFolder(args)
	case "OPEN":
		return r.cmdOpen(args)
	case "OPENPARENT":
		return r.cmdOpenParent(args)
	case "MOVE":
		return r.cmdMove(args)
	case "UPMOVE":
		return r.cmdUpMove(args)
	case "CHECKPOINT":
		return r.cmdCheckpoint(args)
	case "REVERT":
		return r.cmdRevert(args)
	case "VIEWCHECKPOINT":
		return r.cmdViewCheckpoint(args)
	case "LISTCHECKPOINTS":
		return r.cmdListCheckpoints(args)
	default:
		return fmt.Errorf("unknown command %q", cmd)
	}
}

func needArgs(args []string, n int, usage string) error {
	if len(args) < n {
		return fmt.Errorf("usage: %s", usage)
	}
	return nil
}

// cmdView renders VIEW [-a|-l|-al], including the owned/shared prefix
// convention from SPEC_FULL.md §12: "->" for files the caller owns, "~>"
// for files only accessible via a grant.
func (r *REPL) cmdView(args []string) error {
	includeShared, long := false, false
	for _, a := range args {
		switch a {
		case "-a":
			includeShared = true
		case "-l":
			long = true
		case "-al", "-la":
			includeShared, long = true, true
		default:
			return fmt.Errorf("usage: VIEW [-a|-l|-al]")
		}
	}
	entries, err := r.client.View(includeShared, long)
	if err != nil {
		return err
	}
	for _, e := range entries {
		prefix := "~>"
		if e.Owned {
			prefix = "->"
		}
		if long {
			fmt.Fprintf(r.out, "%s %s\t%d bytes\tmodified %d\n", prefix, e.Filename, e.Size, e.ModifiedUnix)
		} else {
			fmt.Fprintf(r.out, "%s %s\n", prefix, e.Filename)
		}
	}
	r.success("")
	return nil
}

func (r *REPL) cmdRead(args []string) error {
	if err := needArgs(args, 1, "READ <file>"); err != nil {
		return err
	}
	content, err := r.client.Read(args[0])
	if err != nil {
		return err
	}
	r.out.Write(content)
	if len(content) == 0 || content[len(content)-1] != '\n' {
		fmt.Fprintln(r.out)
	}
	r.success("")
	return nil
}

func (r *REPL) cmdStream(args []string) error {
	if err := needArgs(args, 1, "STREAM <file>"); err != nil {
		return err
	}
	err := r.client.Stream(args[0], func(word string) {
		fmt.Fprintf(r.out, "%s ", word)
	})
	fmt.Fprintln(r.out)
	if err != nil {
		return err
	}
	r.success("")
	return nil
}

func (r *REPL) cmdCreate(args []string) error {
	if err := needArgs(args, 1, "CREATE <file>"); err != nil {
		return err
	}
	msg, err := r.client.Create(args[0])
	if err != nil {
		return err
	}
	r.success(msg)
	return nil
}

func (r *REPL) cmdDelete(args []string) error {
	if err := needArgs(args, 1, "DELETE <file>"); err != nil {
		return err
	}
	msg, err := r.client.Delete(args[0])
	if err != nil {
		return err
	}
	r.success(msg)
	return nil
}

func (r *REPL) cmdInfo(args []string) error {
	if err := needArgs(args, 1, "INFO <file>"); err != nil {
		return err
	}
	info, err := r.client.Info(args[0])
	if err != nil {
		return err
	}
	fmt.Fprintf(r.out, "filename: %s\nowner: %s\nsize: %d\nwords: %d\nchars: %d\nmodified: %d\naccessed: %d\nprimary_ss: %d\nbackup_ss: %d\n",
		info.Filename, info.Owner, info.Size, info.Words, info.Chars, info.ModifiedUnix, info.AccessUnix, info.PrimarySSID, info.BackupSSID)
	r.success("")
	return nil
}

func (r *REPL) cmdUndo(args []string) error {
	if err := needArgs(args, 1, "UNDO <file>"); err != nil {
		return err
	}
	msg, err := r.client.Undo(args[0])
	if err != nil {
		return err
	}
	r.success(msg)
	return nil
}

func (r *REPL) cmdExec(args []string) error {
	if err := needArgs(args, 1, "EXEC <file>"); err != nil {
		return err
	}
	out, err := r.client.Exec(args[0])
	if err != nil {
		return err
	}
	r.out.Write(out)
	if len(out) == 0 || out[len(out)-1] != '\n' {
		fmt.Fprintln(r.out)
	}
	r.success("")
	return nil
}

func (r *REPL) cmdList(args []string) error {
	users, err := r.client.ListUsers()
	if err != nil {
		return err
	}
	for _, u := range users {
		state := "offline"
		if u.Active {
			state = "online"
		}
		fmt.Fprintf(r.out, "%s\t%s\n", u.Username, state)
	}
	r.success("")
	return nil
}

func parsePermFlag(flag string) (uint8, error) {
	switch flag {
	case "-R":
		return wire.PermRead, nil
	case "-W":
		return wire.PermWrite, nil
	default:
		return 0, fmt.Errorf("invalid permission flag %q", flag)
	}
}

func (r *REPL) cmdAccessAdd(args []string) error {
	if err := needArgs(args, 3, "ADDACCESS -R|-W <file> <user>"); err != nil {
		return err
	}
	perm, err := parsePermFlag(args[0])
	if err != nil {
		return err
	}
	msg, err := r.client.AccessAdd(args[1], args[2], perm)
	if err != nil {
		return err
	}
	r.success(msg)
	return nil
}

func (r *REPL) cmdAccessRem(args []string) error {
	if err := needArgs(args, 2, "REMACCESS <file> <user>"); err != nil {
		return err
	}
	msg, err := r.client.AccessRem(args[0], args[1])
	if err != nil {
		return err
	}
	r.success(msg)
	return nil
}

func (r *REPL) cmdReqAccess(args []string) error {
	if err := needArgs(args, 1, "REQACCESS <file>"); err != nil {
		return err
	}
	msg, err := r.client.ReqAccess(args[0])
	if err != nil {
		return err
	}
	r.success(msg)
	return nil
}

func (r *REPL) cmdViewReqs(args []string) error {
	reqs, err := r.client.ViewReqAccess()
	if err != nil {
		return err
	}
	for _, rq := range reqs {
		fmt.Fprintf(r.out, "%s requests %s\n", rq.Requester, rq.Filename)
	}
	r.success("")
	return nil
}

func (r *REPL) cmdGrantAccess(args []string) error {
	if err := needArgs(args, 3, "GRANTACCESS -R|-W <file> <user>"); err != nil {
		return err
	}
	perm, err := parsePermFlag(args[0])
	if err != nil {
		return err
	}
	msg, err := r.client.GrantReqAccess(args[1], args[2], perm)
	if err != nil {
		return err
	}
	r.success(msg)
	return nil
}

func (r *REPL) cmdCreateFolder(args []string) error {
	if err := needArgs(args, 1, "CREATEFOLDER <dir>"); err != nil {
		return err
	}
	msg, err := r.client.CreateFolder(args[0])
	if err != nil {
		return err
	}
	r.success(msg)
	return nil
}

func (r *REPL) cmdViewFolder(args []string) error {
	path := ""
	if len(args) > 0 {
		path = args[0]
	}
	entries, err := r.client.ViewFolder(path)
	if err != nil {
		return err
	}
	for _, e := range entries {
		kind := "folder"
		if e.Kind == 2 {
			kind = "file"
		} else if e.Kind == 0 {
			kind = "root"
		}
		fmt.Fprintf(r.out, "%s\t%s\n", kind, e.Name)
	}
	r.success("")
	return nil
}

func (r *REPL) cmdOpen(args []string) error {
	createIf := false
	if len(args) > 0 && args[0] == "-c" {
		createIf = true
		args = args[1:]
	}
	if err := needArgs(args, 1, "OPEN [-c] <dir>"); err != nil {
		return err
	}
	msg, err := r.client.Open(args[0], createIf)
	if err != nil {
		return err
	}
	r.success(msg)
	return nil
}

func (r *REPL) cmdOpenParent(args []string) error {
	msg, err := r.client.OpenParent()
	if err != nil {
		return err
	}
	r.success(msg)
	return nil
}

func (r *REPL) cmdMove(args []string) error {
	if err := needArgs(args, 2, "MOVE <file> <dir>"); err != nil {
		return err
	}
	msg, err := r.client.Move(args[0], args[1])
	if err != nil {
		return err
	}
	r.success(msg)
	return nil
}

func (r *REPL) cmdUpMove(args []string) error {
	if err := needArgs(args, 1, "UPMOVE <file>"); err != nil {
		return err
	}
	msg, err := r.client.UpMove(args[0])
	if err != nil {
		return err
	}
	r.success(msg)
	return nil
}

func (r *REPL) cmdCheckpoint(args []string) error {
	if err := needArgs(args, 2, "CHECKPOINT <file> <tag>"); err != nil {
		return err
	}
	msg, err := r.client.Checkpoint(args[0], args[1])
	if err != nil {
		return err
	}
	r.success(msg)
	return nil
}

func (r *REPL) cmdRevert(args []string) error {
	if err := needArgs(args, 2, "REVERT <file> <tag>"); err != nil {
		return err
	}
	msg, err := r.client.Revert(args[0], args[1])
	if err != nil {
		return err
	}
	r.success(msg)
	return nil
}

func (r *REPL) cmdViewCheckpoint(args []string) error {
	if err := needArgs(args, 2, "VIEWCHECKPOINT <file> <tag>"); err != nil {
		return err
	}
	content, err := r.client.ViewCheckpoint(args[0], args[1])
	if err != nil {
		return err
	}
	r.out.Write(content)
	if len(content) == 0 || content[len(content)-1] != '\n' {
		fmt.Fprintln(r.out)
	}
	r.success("")
	return nil
}

func (r *REPL) cmdListCheckpoints(args []string) error {
	if err := needArgs(args, 1, "LISTCHECKPOINTS <file>"); err != nil {
		return err
	}
	entries, err := r.client.ListCheckpoints(args[0])
	if err != nil {
		return err
	}
	for _, e := range entries {
		fmt.Fprintf(r.out, "%s\t%d bytes\tmodified %d\n", e.Tag, e.Size, e.ModifiedUnix)
	}
	r.success("")
	return nil
}

// cmdWrite drives the WRITE sub-REPL: after a successful BeginWrite, the
// prompt switches to "w> " and accepts "<word_index> <content>" lines or a
// bare "ETIRW" to commit (spec.md §6).
func (r *REPL) cmdWrite(args []string) error {
	if err := needArgs(args, 2, "WRITE <file> <sentence_num>"); err != nil {
		return err
	}
	sentenceNum, err := strconv.ParseUint(args[1], 10, 32)
	if err != nil {
		return fmt.Errorf("invalid sentence index %q", args[1])
	}
	tx, err := r.client.BeginWrite(args[0], uint32(sentenceNum))
	if err != nil {
		return err
	}

	for {
		line, err := prompt.RawLine("w> ")
		if err != nil {
			tx.Abort()
			if prompt.IsEOF(err) || prompt.IsAborted(err) {
				return nil
			}
			return err
		}
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if line == "ETIRW" {
			msg, err := tx.Commit()
			if err != nil {
				return err
			}
			r.success(msg)
			return nil
		}
		parts := strings.SplitN(line, " ", 2)
		idx, err := strconv.ParseUint(parts[0], 10, 32)
		if err != nil {
			fmt.Fprintf(r.errOut, "ERROR: invalid word index %q\n", parts[0])
			continue
		}
		content := ""
		if len(parts) > 1 {
			content = parts[1]
		}
		if err := tx.WriteWord(uint32(idx), content); err != nil {
			tx.Abort()
			return err
		}
	}
}

func (r *REPL) printHelp() {
	fmt.Fprintln(r.out, `VIEW [-a|-l|-al]
READ <file>
STREAM <file>
CREATE <file>
DELETE <file>
INFO <file>
WRITE <file> <sentence_num>
UNDO <file>
EXEC <file>
LIST
ADDACCESS -R|-W <file> <user>
REMACCESS <file> <user>
REQACCESS <file>
VIEWREQS
GRANTACCESS -R|-W <file> <user>
CREATEFOLDER <dir>
VIEWFOLDER [<path>]
OPEN [-c] <dir>
OPENPARENT
MOVE <file> <dir>
UPMOVE <file>
CHECKPOINT <file> <tag>
REVERT <file> <tag>
VIEWCHECKPOINT <file> <tag>
LISTCHECKPOINTS <file>
help
exit`)
}
