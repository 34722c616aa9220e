package zookeeper

import (
	"sort"
	"strings"
	"time"

	"github.com/go-zookeeper/zk"
	"github.com/pkg/errors"
)

// 所有核销计数锁的根节点。锁粒度是单个促销 ID：
// 持锁方只允许做"读计数-判限额-递增"这一步，绝不跨组件调用。
const lockRoot = "/promotion_usage_locks"

// DistributedLock 是基于临时顺序节点的分布式互斥锁。
type DistributedLock struct {
	conn     *Conn
	path     string // 锁路径，如 /promotion_usage_locks/42
	lockNode string // 抢锁成功后自己创建的节点
	timeout  time.Duration
}

// NewDistributedLock 为某个资源（促销 ID）创建锁实例。
func NewDistributedLock(conn *Conn, resourceID string, timeout time.Duration) (*DistributedLock, error) {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if err := conn.EnsurePath(lockRoot); err != nil {
		return nil, err
	}
	lockPath := lockRoot + "/" + resourceID
	if err := conn.EnsurePath(lockPath); err != nil {
		return nil, err
	}
	return &DistributedLock{conn: conn, path: lockPath, timeout: timeout}, nil
}

// Lock 尝试获取锁，获取不到时阻塞等待，超时报错。
func (l *DistributedLock) Lock() error {
	// 1. 创建临时顺序节点
	nodePath, err := l.conn.CreateProtectedEphemeralSequential(l.path+"/lock-", []byte{}, zk.WorldACL(zk.PermAll))
	if err != nil {
		return errors.Wrap(err, "failed to create sequential lock node")
	}
	l.lockNode = nodePath

	for {
		// 2. 自己是不是最小节点
		children, _, err := l.conn.Children(l.path)
		if err != nil {
			return errors.Wrap(err, "failed to list lock children")
		}
		sort.Strings(children)

		myNode := strings.TrimPrefix(l.lockNode, l.path+"/")
		if myNode == children[0] {
			return nil
		}

		// 3. 不是最小节点：只监听前一个节点，避免惊群
		prev := -1
		for i, child := range children {
			if child == myNode {
				prev = i - 1
				break
			}
		}
		if prev < 0 {
			return errors.New("lock node missing from children listing")
		}
		prevPath := l.path + "/" + children[prev]

		exists, _, eventCh, err := l.conn.ExistsW(prevPath)
		if err != nil {
			return errors.Wrap(err, "failed to watch previous lock node")
		}
		if !exists {
			continue // 前一个节点刚好释放，重新竞争
		}

		select {
		case event := <-eventCh:
			if event.Type == zk.EventNodeDeleted {
				continue
			}
		case <-time.After(l.timeout):
			_ = l.Unlock()
			return errors.New("timeout waiting for usage lock")
		}
	}
}

// Unlock 释放锁。
func (l *DistributedLock) Unlock() error {
	if l.lockNode == "" {
		return errors.New("no lock held")
	}
	err := l.conn.Delete(l.lockNode, -1)
	if err != nil && err != zk.ErrNoNode {
		return errors.Wrap(err, "failed to delete lock node")
	}
	l.lockNode = ""
	return nil
}
