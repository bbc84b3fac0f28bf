package feature

import (
	"testing"
	"time"
)

func TestCache_GetSet(t *testing.T) {
	c := NewCache[string, int](10, time.Minute)
	defer c.Close()

	if _, ok := c.Get("a"); ok {
		t.Fatal("empty cache should miss")
	}
	c.Set("a", 1, 0)
	if v, ok := c.Get("a"); !ok || v != 1 {
		t.Fatalf("Get(a) = %v, %v", v, ok)
	}
}

func TestCache_EvictsOldestInserted(t *testing.T) {
	c := NewCache[string, int](3, time.Minute)
	defer c.Close()

	c.Set("a", 1, 0)
	c.Set("b", 2, 0)
	c.Set("c", 3, 0)

	// 访问 a 不改变淘汰顺序：按插入序淘汰，不是按访问序
	c.Get("a")

	c.Set("d", 4, 0)
	if _, ok := c.Get("a"); ok {
		t.Error("a should be evicted (oldest inserted)")
	}
	for _, k := range []string{"b", "c", "d"} {
		if _, ok := c.Get(k); !ok {
			t.Errorf("%s should survive eviction", k)
		}
	}
	if c.Len() != 3 {
		t.Errorf("Len = %d, want 3", c.Len())
	}
}

func TestCache_OverwriteKeepsPosition(t *testing.T) {
	c := NewCache[string, int](2, time.Minute)
	defer c.Close()

	c.Set("a", 1, 0)
	c.Set("b", 2, 0)
	c.Set("a", 10, 0) // 覆盖不是重新插入
	c.Set("c", 3, 0)  // 满了，淘汰最老的 a

	if _, ok := c.Get("a"); ok {
		t.Error("a should be evicted despite recent overwrite")
	}
	if v, _ := c.Get("b"); v != 2 {
		t.Error("b should survive")
	}
}

func TestCache_TTLExpiry(t *testing.T) {
	c := NewCache[string, int](10, time.Minute)
	defer c.Close()

	c.Set("a", 1, 10*time.Millisecond)
	if _, ok := c.Get("a"); !ok {
		t.Fatal("entry should be fresh")
	}
	time.Sleep(20 * time.Millisecond)
	if _, ok := c.Get("a"); ok {
		t.Fatal("expired entry should miss")
	}
	// 惰性删除生效
	if c.Len() != 0 {
		t.Errorf("Len = %d after lazy delete, want 0", c.Len())
	}
}

func TestCache_Delete(t *testing.T) {
	c := NewCache[string, int](10, time.Minute)
	defer c.Close()

	c.Set("a", 1, 0)
	c.Delete("a")
	if _, ok := c.Get("a"); ok {
		t.Error("deleted entry should miss")
	}
	c.Delete("missing") // 删除不存在的 key 不报错
}
