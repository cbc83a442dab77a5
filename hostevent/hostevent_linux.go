//go:build linux

package hostevent

import (
	"encoding/binary"
	"time"

	"golang.org/x/sys/unix"

	"github.com/vcpurt/vcpurt/internal/rterr"
)

// linuxFD implements FD on top of a Linux eventfd, grounded on the
// teacher's eventloop/wakeup_linux.go (unix.Eventfd with EFD_CLOEXEC) and
// eventloop/poller_linux.go (unix.EpollCreate1/EpollWait) for the blocking
// poll-with-timeout path.
type linuxFD struct {
	fd    int
	epfd  int
}

// New creates a host event fd backed by a Linux eventfd plus a private
// epoll instance used only to implement Poll's timeout.
func New() (FD, error) {
	fd, err := unix.Eventfd(0, unix.EFD_CLOEXEC|unix.EFD_NONBLOCK)
	if err != nil {
		return nil, err
	}
	epfd, err := unix.EpollCreate1(unix.EPOLL_CLOEXEC)
	if err != nil {
		_ = unix.Close(fd)
		return nil, err
	}
	if err := unix.EpollCtl(epfd, unix.EPOLL_CTL_ADD, fd, &unix.EpollEvent{
		Events: unix.EPOLLIN,
		Fd:     int32(fd),
	}); err != nil {
		_ = unix.Close(fd)
		_ = unix.Close(epfd)
		return nil, err
	}
	return &linuxFD{fd: fd, epfd: epfd}, nil
}

func (f *linuxFD) WriteU64(v uint64) error {
	var buf [8]byte
	binary.NativeEndian.PutUint64(buf[:], v)
	for {
		_, err := unix.Write(f.fd, buf[:])
		if err == unix.EINTR {
			continue
		}
		return err
	}
}

func (f *linuxFD) ReadU64() (uint64, error) {
	var buf [8]byte
	for {
		_, err := unix.Read(f.fd, buf[:])
		if err == unix.EINTR {
			continue
		}
		if err == unix.EAGAIN {
			if _, perr := f.pollEpoll(nil); perr != nil {
				return 0, perr
			}
			continue
		}
		if err != nil {
			return 0, err
		}
		return binary.NativeEndian.Uint64(buf[:]), nil
	}
}

func (f *linuxFD) Poll(timeout *time.Duration) (bool, error) {
	return f.pollEpoll(timeout)
}

func (f *linuxFD) pollEpoll(timeout *time.Duration) (bool, error) {
	ms := -1
	if timeout != nil {
		ms = int(timeout.Milliseconds())
		if ms < 0 {
			ms = 0
		}
	}
	var events [1]unix.EpollEvent
	n, err := unix.EpollWait(f.epfd, events[:], ms)
	if err == unix.EINTR {
		// A signal interrupted the wait: surface it rather than retrying, so
		// callers (waiter.Wait/WaitMut) can propagate rterr.ErrInterrupted
		// up through the task as spec'd instead of masking it here.
		return false, rterr.ErrInterrupted
	}
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (f *linuxFD) Close() error {
	_ = unix.Close(f.epfd)
	return unix.Close(f.fd)
}
